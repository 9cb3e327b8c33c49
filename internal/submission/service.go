// Package submission grades a respondent's answers and ranks the score
// against the quiz's recent submissions.
package submission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/event"
	"github.com/victornm/openquiz/internal/grading"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/ranking"
	"github.com/victornm/openquiz/internal/store"
)

type QuizReader interface {
	Get(ctx context.Context, id string) (*domain.Quiz, error)
}

type StatsUpdater interface {
	Update(ctx context.Context, quizID string, fn store.UpdateFunc) (domain.Statistics, error)
}

type Config struct {
	Quizzes  QuizReader
	Stats    StatsUpdater
	EventBus *event.Bus
}

type Service struct {
	quizzes QuizReader
	stats   StatsUpdater
	eb      *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		quizzes: c.Quizzes,
		stats:   c.Stats,
		eb:      c.EventBus,
	}
}

type SubmitRequest struct {
	QuizID  string
	Answers []domain.Answer
}

type SubmitResponse struct {
	Score      int
	Total      int
	Percentile int
	Results    []domain.QuestionResult
}

// Submit grades the answers, records the score in the quiz's statistics and
// returns the score with its percentile. Submissions are not deduplicated:
// every call counts as a new respondent.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if !quiz.ValidCode(req.QuizID) {
		return nil, errors.NotFoundf("quiz not found: id=%s", req.QuizID)
	}

	q, err := s.quizzes.Get(ctx, req.QuizID)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	g := grading.Grade(q.Questions, req.Answers)

	var percentile int
	stats, err := s.stats.Update(ctx, q.ID, func(cur domain.Statistics) domain.Statistics {
		var next domain.Statistics
		next, percentile = ranking.Record(cur, g.Score)
		return next
	})
	if err != nil {
		if errors.Is(err, errors.CodeAborted) && s.eb != nil {
			s.eb.Publish(ctx, domain.EventSubmissionLostRetry{QuizID: q.ID})
		}
		return nil, fmt.Errorf("submit: record score: %w", err)
	}

	slog.DebugContext(ctx, "submission: recorded",
		"quiz", q.ID,
		"score", g.Score,
		"total", g.Total,
		"percentile", percentile,
		"total_count", stats.TotalCount,
	)

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventSubmissionRecorded{
			QuizID:     q.ID,
			Score:      g.Score,
			Total:      g.Total,
			Percentile: percentile,
			TotalCount: stats.TotalCount,
			WindowSize: len(stats.Submissions),
		})
	}

	return &SubmitResponse{
		Score:      g.Score,
		Total:      g.Total,
		Percentile: percentile,
		Results:    g.Results,
	}, nil
}
