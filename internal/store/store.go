// Package store keeps quizzes and their submission statistics in Redis as JSON
// documents.
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/errors"
)

const defaultMaxRetries = 5

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	// MaxRetries bounds the optimistic retries of a statistics update.
	MaxRetries int
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// QuizStore reads and creates quiz documents.
type QuizStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewQuizStore(c Config) *QuizStore {
	return &QuizStore{
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

// Get returns the quiz with the given code, or a NotFound error.
func (s *QuizStore) Get(ctx context.Context, id string) (*domain.Quiz, error) {
	b, err := s.redis.Get(ctx, quizKey(s.prefix, id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFoundf("quiz not found: id=%s", id)
	}
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("get quiz %s: %w", id, err))
	}

	var r quizRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Internal(fmt.Errorf("decode quiz %s: %w", id, err))
	}

	q := r.toDomain()
	return &q, nil
}

// Create stores q together with an empty statistics record. It fails with
// AlreadyExists when the code is taken, in which case nothing is written.
func (s *QuizStore) Create(ctx context.Context, q domain.Quiz) error {
	qk, sk := quizKey(s.prefix, q.ID), statsKey(s.prefix, q.ID)

	qb, err := json.Marshal(toQuizRecord(q))
	if err != nil {
		return errors.Internal(fmt.Errorf("encode quiz %s: %w", q.ID, err))
	}
	sb, err := json.Marshal(toStatsRecord(domain.Statistics{}))
	if err != nil {
		return errors.Internal(fmt.Errorf("encode stats %s: %w", q.ID, err))
	}

	taken := errors.New(errors.CodeAlreadyExists, errors.WithMessagef("quiz already exists: id=%s", q.ID))

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, qk).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return taken
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, qk, qb, 0)
			p.Set(ctx, sk, sb, 0)
			return nil
		})
		return err
	}, qk)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.CodeAlreadyExists), stderrors.Is(err, redis.TxFailedErr):
		return taken
	default:
		return errors.Unavailable(fmt.Errorf("create quiz %s: %w", q.ID, err))
	}
}

// StatsStore reads and updates the per-quiz submission statistics.
type StatsStore struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
}

func NewStatsStore(c Config) *StatsStore {
	s := &StatsStore{
		redis:      c.Redis,
		prefix:     c.Prefix,
		maxRetries: c.MaxRetries,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxRetries
	}

	return s
}

// Get returns the statistics of a quiz. A missing record is reported as an
// empty one.
func (s *StatsStore) Get(ctx context.Context, quizID string) (domain.Statistics, error) {
	return getStats(ctx, s.redis, statsKey(s.prefix, quizID))
}

// UpdateFunc computes the next statistics record from the current one. It may
// be called more than once per update and must not keep references to cur.
type UpdateFunc func(cur domain.Statistics) domain.Statistics

// Update applies fn to the stored statistics of a quiz. The read and the write
// are guarded with WATCH, a concurrent write makes the update start over with
// the fresh record. After MaxRetries conflicts the update is abandoned with an
// Aborted error and the stored record stays as the other writers left it.
func (s *StatsStore) Update(ctx context.Context, quizID string, fn UpdateFunc) (domain.Statistics, error) {
	k := statsKey(s.prefix, quizID)

	var next domain.Statistics
	txf := func(tx *redis.Tx) error {
		cur, err := getStats(ctx, tx, k)
		if err != nil {
			return err
		}

		next = fn(cur)
		b, err := json.Marshal(toStatsRecord(next))
		if err != nil {
			return errors.Internal(fmt.Errorf("encode stats %s: %w", quizID, err))
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, b, 0)
			return nil
		})
		return err
	}

	for i := 0; i <= s.maxRetries; i++ {
		err := s.redis.Watch(ctx, txf, k)
		if err == nil {
			return next, nil
		}

		if !stderrors.Is(err, redis.TxFailedErr) {
			var e *errors.Error
			if stderrors.As(err, &e) {
				return domain.Statistics{}, err
			}
			return domain.Statistics{}, errors.Unavailable(fmt.Errorf("update stats %s: %w", quizID, err))
		}

		slog.DebugContext(ctx, "store: stats update conflict",
			"quiz", quizID,
			"attempt", i+1,
		)
	}

	return domain.Statistics{}, errors.New(errors.CodeAborted,
		errors.WithMessagef("too many concurrent submissions, try again: quiz=%s", quizID),
	)
}

func getStats(ctx context.Context, g getter, key string) (domain.Statistics, error) {
	b, err := g.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return domain.Statistics{Submissions: []int{}}, nil
	}
	if err != nil {
		return domain.Statistics{}, errors.Unavailable(fmt.Errorf("get stats %s: %w", key, err))
	}

	var r statsRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Statistics{}, errors.Internal(fmt.Errorf("decode stats %s: %w", key, err))
	}

	return r.toDomain(), nil
}

// Both keys of a quiz share a hash tag so they land on the same cluster slot.
func quizKey(prefix, id string) string {
	return key(prefix, "quiz", id)
}

func statsKey(prefix, id string) string {
	return key(prefix, "stats", id)
}

func key(prefix, kind, id string) string {
	if prefix == "" {
		return fmt.Sprintf("%s:{%s}", kind, id)
	}
	return fmt.Sprintf("%s:%s:{%s}", prefix, kind, id)
}
