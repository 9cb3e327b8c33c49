package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/victornm/openquiz/internal/api"
	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/image"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/report"
	"github.com/victornm/openquiz/internal/store"
	"github.com/victornm/openquiz/internal/submission"
)

const testMaxImageBytes = 16

type env struct {
	http  *gin.Engine
	grpc  *grpc.Server
	redis *miniredis.Miniredis
}

type envOption func(c *api.Config)

func withGRPC(s *grpc.Server) envOption {
	return func(c *api.Config) {
		c.GRPC = s
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func makeEnv(t *testing.T, opts ...envOption) *env {
	rs := miniredis.RunT(t)
	r := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	t.Cleanup(func() { _ = r.Close() })

	sc := store.Config{Redis: r, Prefix: "test"}
	quizzes, stats := store.NewQuizStore(sc), store.NewStatsStore(sc)

	e := gin.New()
	c := api.Config{
		HTTP: e,
		Quiz: quiz.NewService(quiz.Config{
			Quizzes: quizzes,
			Stats:   stats,
		}),
		Submission: submission.NewService(submission.Config{
			Quizzes: quizzes,
			Stats:   stats,
		}),
		Image: image.NewService(image.Config{
			Blobs:    newMemBlobs(),
			MaxBytes: testMaxImageBytes,
		}),
		Report: report.NewService(report.Config{
			Quizzes: quizzes,
			Stats:   stats,
		}),
	}
	for _, opt := range opts {
		opt(&c)
	}

	api.New(c)

	return &env{http: e, grpc: c.GRPC, redis: rs}
}

// do sends a JSON request, body may be a string of raw JSON.
func (e *env) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		bs, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(bs)
	}

	req := httptest.NewRequest(method, target, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.http.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createQuiz creates a quiz whose correct answers are given by correct, one
// question per entry, and returns its code.
func (e *env) createQuiz(t *testing.T, correct ...int) string {
	questions := make([]map[string]any, 0, len(correct))
	for _, c := range correct {
		questions = append(questions, map[string]any{
			"text":          "Question",
			"answers":       []string{"A", "B", "C"},
			"correctAnswer": c,
		})
	}

	w := e.do(t, http.MethodPost, "/api/quiz", map[string]any{
		"title":     "Capitals",
		"questions": questions,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode[struct {
		Success bool   `json:"success"`
		QuizID  string `json:"quizId"`
	}](t, w)
	require.True(t, out.Success)
	return out.QuizID
}

type memBlobs struct {
	mu   sync.Mutex
	imgs map[string]image.Image
}

func newMemBlobs() *memBlobs {
	return &memBlobs{imgs: make(map[string]image.Image)}
}

func (m *memBlobs) Put(_ context.Context, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imgs[img.Key] = img
	return nil
}

func (m *memBlobs) Get(_ context.Context, key string) (*image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.imgs[key]
	if !ok {
		return nil, errors.NotFoundf("image not found: key=%s", key)
	}
	return &img, nil
}
