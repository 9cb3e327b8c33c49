// Package api exposes the quiz services over HTTP (gin) and gRPC.
package api

import (
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"github.com/victornm/openquiz/internal/image"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/report"
	"github.com/victornm/openquiz/internal/submission"
)

type Config struct {
	// GRPC and HTTP are optional, a nil one is not served.
	GRPC *grpc.Server
	HTTP *gin.Engine

	Quiz       *quiz.Service
	Submission *submission.Service
	Image      *image.Service
	Report     *report.Service
}

type API struct {
	qs  *quiz.Service
	ss  *submission.Service
	is  *image.Service
	rps *report.Service
}

func New(c Config) *API {
	a := &API{
		qs:  c.Quiz,
		ss:  c.Submission,
		is:  c.Image,
		rps: c.Report,
	}

	if c.GRPC != nil {
		RegisterQuizServiceServer(c.GRPC, a)
	}

	if c.HTTP != nil {
		a.registerHTTP(c.HTTP)
	}

	return a
}
