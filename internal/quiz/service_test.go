package quiz_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/event"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/store"
)

func TestService_CreateQuiz(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 6789000, time.UTC)
	s := makeService(t, withNow(func() time.Time { return now }))

	q, err := s.CreateQuiz(context.Background(), quiz.CreateQuizRequest{
		Title:     "  Capitals\x07 ",
		Thumbnail: "/images/thumb<script>.png",
		Questions: []quiz.QuestionInput{
			{
				Text:          "Capital of France?",
				Images:        []string{"https://example.com/paris.jpg", "javascript:alert(1)", ""},
				Answers:       []string{"Lyon", " Paris "},
				CorrectAnswer: intPtr(1),
			},
		},
	})
	require.NoError(t, err)

	assert.True(t, quiz.ValidCode(q.ID))
	assert.Equal(t, "Capitals", q.Title)
	assert.Equal(t, "/images/thumbscript.png", q.Thumbnail)
	assert.Equal(t, []string{"https://example.com/paris.jpg"}, q.Questions[0].Images)
	assert.Equal(t, []string{"Lyon", "Paris"}, q.Questions[0].Answers)
	assert.Equal(t, now.Truncate(time.Millisecond), q.CreatedAt)

	got, err := s.GetQuiz(context.Background(), quiz.GetQuizRequest{QuizID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, q, got)

	stats, err := s.GetStats(context.Background(), quiz.GetStatsRequest{QuizID: q.ID})
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCount)
}

func TestService_CreateQuizValidation(t *testing.T) {
	valid := func() quiz.QuestionInput {
		return quiz.QuestionInput{Text: "q", Answers: []string{"a", "b"}, CorrectAnswer: intPtr(0)}
	}

	tests := map[string]struct {
		req     func() quiz.CreateQuizRequest
		wantMsg string
	}{
		"missing title": {
			req: func() quiz.CreateQuizRequest {
				return quiz.CreateQuizRequest{Title: " \t", Questions: []quiz.QuestionInput{valid()}}
			},
			wantMsg: "quiz title is required",
		},
		"title too long": {
			req: func() quiz.CreateQuizRequest {
				return quiz.CreateQuizRequest{Title: strings.Repeat("가", 201), Questions: []quiz.QuestionInput{valid()}}
			},
			wantMsg: "quiz title must be at most 200 characters",
		},
		"no questions": {
			req: func() quiz.CreateQuizRequest {
				return quiz.CreateQuizRequest{Title: "t"}
			},
			wantMsg: "at least 1 question is required",
		},
		"too many questions": {
			req: func() quiz.CreateQuizRequest {
				qs := make([]quiz.QuestionInput, 101)
				for i := range qs {
					qs[i] = valid()
				}
				return quiz.CreateQuizRequest{Title: "t", Questions: qs}
			},
			wantMsg: "at most 100 questions are allowed",
		},
		"empty question text": {
			req: func() quiz.CreateQuizRequest {
				q := valid()
				q.Text = ""
				return quiz.CreateQuizRequest{Title: "t", Questions: []quiz.QuestionInput{valid(), q}}
			},
			wantMsg: "question 2: text is required",
		},
		"single answer": {
			req: func() quiz.CreateQuizRequest {
				q := valid()
				q.Answers = []string{"only"}
				return quiz.CreateQuizRequest{Title: "t", Questions: []quiz.QuestionInput{q}}
			},
			wantMsg: "question 1: at least 2 answers are required",
		},
		"too many answers": {
			req: func() quiz.CreateQuizRequest {
				q := valid()
				q.Answers = make([]string, 21)
				for i := range q.Answers {
					q.Answers[i] = "a"
				}
				return quiz.CreateQuizRequest{Title: "t", Questions: []quiz.QuestionInput{q}}
			},
			wantMsg: "question 1: at most 20 answers are allowed",
		},
		"blank answer": {
			req: func() quiz.CreateQuizRequest {
				q := valid()
				q.Answers = []string{"a", "\x01 "}
				return quiz.CreateQuizRequest{Title: "t", Questions: []quiz.QuestionInput{q}}
			},
			wantMsg: "question 1: answer 2 is empty",
		},
		"missing correct answer": {
			req: func() quiz.CreateQuizRequest {
				q := valid()
				q.CorrectAnswer = nil
				return quiz.CreateQuizRequest{Title: "t", Questions: []quiz.QuestionInput{q}}
			},
			wantMsg: "question 1: correct answer is invalid",
		},
		"correct answer out of range": {
			req: func() quiz.CreateQuizRequest {
				q := valid()
				q.CorrectAnswer = intPtr(2)
				return quiz.CreateQuizRequest{Title: "t", Questions: []quiz.QuestionInput{q}}
			},
			wantMsg: "question 1: correct answer is invalid",
		},
		"negative correct answer": {
			req: func() quiz.CreateQuizRequest {
				q := valid()
				q.CorrectAnswer = intPtr(-1)
				return quiz.CreateQuizRequest{Title: "t", Questions: []quiz.QuestionInput{q}}
			},
			wantMsg: "question 1: correct answer is invalid",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := makeService(t)
			_, err := s.CreateQuiz(context.Background(), tt.req())
			require.Error(t, err)

			e := errors.Convert(err)
			assert.Equal(t, errors.CodeInvalidArgument, e.Code)
			assert.Equal(t, tt.wantMsg, e.Message)
		})
	}
}

func TestService_CreateQuizRetriesOnCollision(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	var i int
	s := makeService(t, withNewCode(func() (string, error) {
		c := codes[i]
		i++
		return c, nil
	}))

	req := quiz.CreateQuizRequest{
		Title:     "t",
		Questions: []quiz.QuestionInput{{Text: "q", Answers: []string{"a", "b"}, CorrectAnswer: intPtr(0)}},
	}

	first, err := s.CreateQuiz(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.ID)

	second, err := s.CreateQuiz(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.ID)
}

func TestService_CreateQuizGivesUpAfterAttempts(t *testing.T) {
	s := makeService(t, withNewCode(func() (string, error) { return "AAAAAA", nil }))

	req := quiz.CreateQuizRequest{
		Title:     "t",
		Questions: []quiz.QuestionInput{{Text: "q", Answers: []string{"a", "b"}, CorrectAnswer: intPtr(0)}},
	}

	_, err := s.CreateQuiz(context.Background(), req)
	require.NoError(t, err)

	_, err = s.CreateQuiz(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInternal, errors.Convert(err).Code)
}

func TestService_CreateQuizPublishesEvent(t *testing.T) {
	eb := event.NewBus()

	var (
		mu       sync.Mutex
		received []domain.EventQuizCreated
	)
	eb.Subscribe(domain.EventNameQuizCreated, func(_ context.Context, e event.Event) error {
		mu.Lock()
		received = append(received, e.(domain.EventQuizCreated))
		mu.Unlock()
		return nil
	})

	s := makeService(t, withEventBus(eb))
	q, err := s.CreateQuiz(context.Background(), quiz.CreateQuizRequest{
		Title:     "t",
		Questions: []quiz.QuestionInput{{Text: "q", Answers: []string{"a", "b"}, CorrectAnswer: intPtr(0)}},
	})
	require.NoError(t, err)
	eb.Stop()

	require.Len(t, received, 1)
	assert.Equal(t, q.ID, received[0].Quiz.ID)
}

func TestService_GetQuizNotFound(t *testing.T) {
	s := makeService(t)

	for _, id := range []string{"", "abc", "abc12!", "Zz9Zz9"} {
		_, err := s.GetQuiz(context.Background(), quiz.GetQuizRequest{QuizID: id})
		require.Error(t, err, id)
		assert.Equal(t, errors.CodeNotFound, errors.Convert(err).Code, id)
	}
}

func TestService_GetStatsUnknownQuiz(t *testing.T) {
	s := makeService(t)

	for _, id := range []string{"Zz9Zz9", "", "abc12!", "../x"} {
		stats, err := s.GetStats(context.Background(), quiz.GetStatsRequest{QuizID: id})
		require.NoError(t, err, id)
		assert.Zero(t, stats.TotalCount, id)
	}
}

func TestValidCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		c, err := quiz.NewCode()
		require.NoError(t, err)
		require.True(t, quiz.ValidCode(c), c)
	}

	assert.False(t, quiz.ValidCode("abcde"))
	assert.False(t, quiz.ValidCode("abcdefg"))
	assert.False(t, quiz.ValidCode("ab-def"))
	assert.False(t, quiz.ValidCode("ab deف"))
}

func makeService(t *testing.T, opts ...option) *quiz.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	sc := store.Config{Redis: rc, Prefix: "test"}
	c := quiz.Config{
		Quizzes:  store.NewQuizStore(sc),
		Stats:    store.NewStatsStore(sc),
		EventBus: event.NewBus(),
	}

	for _, opt := range opts {
		opt(&c)
	}

	return quiz.NewService(c)
}

type option func(c *quiz.Config)

func withEventBus(eb *event.Bus) option {
	return func(c *quiz.Config) {
		c.EventBus = eb
	}
}

func withNewCode(f func() (string, error)) option {
	return func(c *quiz.Config) {
		c.NewCode = f
	}
}

func withNow(f func() time.Time) option {
	return func(c *quiz.Config) {
		c.Now = f
	}
}

func intPtr(i int) *int {
	return &i
}
