// Package report exports the score distribution of a quiz as a spreadsheet.
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/quiz"
)

const (
	SheetSummary      = "Summary"
	SheetDistribution = "Distribution"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type QuizReader interface {
	Get(ctx context.Context, id string) (*domain.Quiz, error)
}

type StatsReader interface {
	Get(ctx context.Context, quizID string) (domain.Statistics, error)
}

type Config struct {
	Quizzes QuizReader
	Stats   StatsReader
}

type Service struct {
	quizzes QuizReader
	stats   StatsReader
}

func NewService(c Config) *Service {
	return &Service{
		quizzes: c.Quizzes,
		stats:   c.Stats,
	}
}

type ExportStatsRequest struct {
	QuizID string
}

type ExportStatsResponse struct {
	Filename string
	Data     []byte
}

// ExportStats builds a workbook with a summary of the quiz and the number of
// respondents per score within the current window.
func (s *Service) ExportStats(ctx context.Context, req ExportStatsRequest) (*ExportStatsResponse, error) {
	if !quiz.ValidCode(req.QuizID) {
		return nil, errors.NotFoundf("quiz not found: id=%s", req.QuizID)
	}

	var (
		q     *domain.Quiz
		stats domain.Statistics
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		q, err = s.quizzes.Get(egCtx, req.QuizID)
		return err
	})
	eg.Go(func() (err error) {
		stats, err = s.stats.Get(egCtx, req.QuizID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("export stats: %w", err)
	}

	data, err := buildWorkbook(q, stats)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("export stats %s: %w", req.QuizID, err))
	}

	return &ExportStatsResponse{
		Filename: fmt.Sprintf("quiz-%s-stats.xlsx", q.ID),
		Data:     data,
	}, nil
}

func buildWorkbook(q *domain.Quiz, stats domain.Statistics) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Quiz", q.ID},
		{"Title", q.Title},
		{"Questions", len(q.Questions)},
		{"Total submissions", stats.TotalCount},
		{"Submissions in window", len(stats.Submissions)},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(SheetDistribution); err != nil {
		return nil, err
	}

	header := []any{"Score", "Respondents", "Share (%)"}
	if err := f.SetSheetRow(SheetDistribution, "A1", &header); err != nil {
		return nil, err
	}

	for i, row := range distribution(len(q.Questions), stats.Submissions) {
		if err := f.SetSheetRow(SheetDistribution, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// distribution returns one row per possible score, highest first.
func distribution(total int, window []int) [][]any {
	counts := make(map[int]int, total+1)
	for _, v := range window {
		counts[v]++
	}

	rows := make([][]any, 0, total+1)
	for score := total; score >= 0; score-- {
		share := decimal.Zero
		if len(window) > 0 {
			share = decimal.NewFromInt(int64(counts[score])).
				Mul(decimal.NewFromInt(100)).
				Div(decimal.NewFromInt(int64(len(window)))).
				Round(2)
		}
		rows = append(rows, []any{score, counts[score], share.InexactFloat64()})
	}

	return rows
}
