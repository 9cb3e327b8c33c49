package api

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/image"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/report"
	"github.com/victornm/openquiz/internal/submission"
)

// multipartOverhead is allowed on top of the image size limit for the form
// boundaries and headers of an upload.
const multipartOverhead = 1 << 20

// maxSubmitBytes bounds the body of a submission.
const maxSubmitBytes = 64 << 10

func (a *API) registerHTTP(e *gin.Engine) {
	g := e.Group("/api", cors)
	g.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	g.POST("/quiz", a.createQuiz)
	g.GET("/quiz", a.getQuiz)
	g.POST("/upload", a.uploadImage)
	g.POST("/submit", a.submit)
	g.GET("/stats", a.getStats)
	g.GET("/stats/export", a.exportStats)

	e.GET(image.PathPrefix+"*key", a.serveImage)
}

func cors(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	c.Next()
}

func (a *API) createQuiz(c *gin.Context) {
	var body createQuizBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, badBody(err))
		return
	}

	q, err := a.qs.CreateQuiz(c.Request.Context(), body.toRequest())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, createQuizResult{Success: true, QuizID: q.ID})
}

func (a *API) getQuiz(c *gin.Context) {
	q, err := a.qs.GetQuiz(c.Request.Context(), quiz.GetQuizRequest{QuizID: c.Query("id")})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuizView(q))
}

func (a *API) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.is.MaxBytes()+multipartOverhead)

	fh, err := c.FormFile("file")
	if tooLarge := (*http.MaxBytesError)(nil); stderrors.As(err, &tooLarge) {
		abort(c, errors.InvalidArgumentf("file is larger than %d bytes", a.is.MaxBytes()))
		return
	}
	if err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("file is required"),
			errors.WithCause(err),
		))
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, errors.Internal(fmt.Errorf("open upload: %w", err)))
		return
	}
	defer f.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(f, a.is.MaxBytes()+1))
	if err != nil {
		abort(c, errors.Internal(fmt.Errorf("read upload: %w", err)))
		return
	}

	resp, err := a.is.Upload(c.Request.Context(), image.UploadRequest{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResult{Success: true, ImageURL: resp.URL})
}

func (a *API) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmitBytes)

	var body submitBody
	err := c.ShouldBindJSON(&body)
	if tooLarge := (*http.MaxBytesError)(nil); stderrors.As(err, &tooLarge) {
		abort(c, errors.InvalidArgumentf("request body is larger than %d bytes", tooLarge.Limit))
		return
	}
	if err != nil {
		abort(c, badBody(err))
		return
	}

	answers, err := parseAnswers(body.Answers)
	if err != nil {
		abort(c, err)
		return
	}

	resp, err := a.ss.Submit(c.Request.Context(), submission.SubmitRequest{
		QuizID:  body.QuizID,
		Answers: answers,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSubmitResult(resp))
}

func (a *API) getStats(c *gin.Context) {
	st, err := a.qs.GetStats(c.Request.Context(), quiz.GetStatsRequest{QuizID: c.Query("id")})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, statsResult{TotalCount: st.TotalCount})
}

func (a *API) exportStats(c *gin.Context) {
	resp, err := a.rps.ExportStats(c.Request.Context(), report.ExportStatsRequest{QuizID: c.Query("id")})
	if err != nil {
		abort(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Filename))
	c.Data(http.StatusOK, report.ContentType, resp.Data)
}

func (a *API) serveImage(c *gin.Context) {
	img, err := a.is.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		abort(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

func badBody(err error) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("invalid request body"),
		errors.WithCause(err),
	)
}

// abort writes err as {"error": message}. Causes are logged, never sent.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)

	switch e.Code {
	case errors.CodeInternal, errors.CodeUnavailable:
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResult{Error: e.Message})
}
