package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/event"
)

const (
	MaxTitleLength = 200
	MaxQuestions   = 100
	MinAnswers     = 2
	MaxAnswers     = 20

	maxCodeAttempts = 10
)

type QuizStore interface {
	Get(ctx context.Context, id string) (*domain.Quiz, error)
	Create(ctx context.Context, q domain.Quiz) error
}

type StatsReader interface {
	Get(ctx context.Context, quizID string) (domain.Statistics, error)
}

type Config struct {
	Quizzes  QuizStore
	Stats    StatsReader
	EventBus *event.Bus
	// NewCode and Now default to NewCode and time.Now.
	NewCode func() (string, error)
	Now     func() time.Time
}

type Service struct {
	quizzes QuizStore
	stats   StatsReader
	eb      *event.Bus
	newCode func() (string, error)
	now     func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		quizzes: c.Quizzes,
		stats:   c.Stats,
		eb:      c.EventBus,
		newCode: c.NewCode,
		now:     c.Now,
	}
	if s.newCode == nil {
		s.newCode = NewCode
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// CreateQuizRequest is a quiz authoring payload as submitted by its author.
type CreateQuizRequest struct {
	Title     string
	Thumbnail string
	Questions []QuestionInput
}

type QuestionInput struct {
	Text    string
	Images  []string
	Answers []string
	// CorrectAnswer is nil when the author did not pick one.
	CorrectAnswer *int
}

// CreateQuiz validates the payload, assigns a fresh code and stores the quiz
// with empty statistics.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	q, err := buildQuiz(req)
	if err != nil {
		return nil, err
	}
	q.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		q.ID, err = s.newCode()
		if err != nil {
			return nil, errors.Internal(err)
		}

		err = s.quizzes.Create(ctx, q)
		if errors.Is(err, errors.CodeAlreadyExists) {
			slog.WarnContext(ctx, "quiz: code collision", "code", q.ID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create quiz: %w", err)
		}

		if s.eb != nil {
			s.eb.Publish(ctx, domain.EventQuizCreated{Quiz: q})
		}
		return &q, nil
	}

	return nil, errors.New(errors.CodeInternal,
		errors.WithMessagef("could not allocate a quiz code after %d attempts", maxCodeAttempts),
	)
}

func buildQuiz(req CreateQuizRequest) (domain.Quiz, error) {
	title := sanitizeString(req.Title)
	switch {
	case title == "":
		return domain.Quiz{}, errors.InvalidArgumentf("quiz title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return domain.Quiz{}, errors.InvalidArgumentf("quiz title must be at most %d characters", MaxTitleLength)
	}

	switch n := len(req.Questions); {
	case n == 0:
		return domain.Quiz{}, errors.InvalidArgumentf("at least 1 question is required")
	case n > MaxQuestions:
		return domain.Quiz{}, errors.InvalidArgumentf("at most %d questions are allowed", MaxQuestions)
	}

	q := domain.Quiz{
		Title:     title,
		Thumbnail: sanitizeURL(req.Thumbnail),
		Questions: make([]domain.Question, 0, len(req.Questions)),
	}

	for i, in := range req.Questions {
		qq, err := buildQuestion(i+1, in)
		if err != nil {
			return domain.Quiz{}, err
		}
		q.Questions = append(q.Questions, qq)
	}

	return q, nil
}

// buildQuestion validates the n-th (1-based) question.
func buildQuestion(n int, in QuestionInput) (domain.Question, error) {
	text := sanitizeString(in.Text)
	if text == "" {
		return domain.Question{}, errors.InvalidArgumentf("question %d: text is required", n)
	}

	switch {
	case len(in.Answers) < MinAnswers:
		return domain.Question{}, errors.InvalidArgumentf("question %d: at least %d answers are required", n, MinAnswers)
	case len(in.Answers) > MaxAnswers:
		return domain.Question{}, errors.InvalidArgumentf("question %d: at most %d answers are allowed", n, MaxAnswers)
	}

	answers := make([]string, 0, len(in.Answers))
	for j, a := range in.Answers {
		a = sanitizeString(a)
		if a == "" {
			return domain.Question{}, errors.InvalidArgumentf("question %d: answer %d is empty", n, j+1)
		}
		answers = append(answers, a)
	}

	if in.CorrectAnswer == nil || *in.CorrectAnswer < 0 || *in.CorrectAnswer >= len(answers) {
		return domain.Question{}, errors.InvalidArgumentf("question %d: correct answer is invalid", n)
	}

	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if u := sanitizeURL(img); u != "" {
			images = append(images, u)
		}
	}

	return domain.Question{
		Text:          text,
		Images:        images,
		Answers:       answers,
		CorrectAnswer: *in.CorrectAnswer,
	}, nil
}

type GetQuizRequest struct {
	QuizID string
}

// GetQuiz returns the whole quiz including its answer key. Callers showing
// the quiz to respondents must leave CorrectAnswer out.
func (s *Service) GetQuiz(ctx context.Context, req GetQuizRequest) (*domain.Quiz, error) {
	if !ValidCode(req.QuizID) {
		return nil, errors.NotFoundf("quiz not found: id=%s", req.QuizID)
	}

	q, err := s.quizzes.Get(ctx, req.QuizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	return q, nil
}

type GetStatsRequest struct {
	QuizID string
}

type Stats struct {
	TotalCount int64
}

// GetStats reports how many submissions a quiz received. Unknown quizzes
// report zero.
func (s *Service) GetStats(ctx context.Context, req GetStatsRequest) (*Stats, error) {
	if !ValidCode(req.QuizID) {
		return &Stats{}, nil
	}

	st, err := s.stats.Get(ctx, req.QuizID)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	return &Stats{TotalCount: st.TotalCount}, nil
}
