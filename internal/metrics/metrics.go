// Package metrics turns domain events into Prometheus metrics.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/event"
)

const namespace = "openquiz"

type Config struct {
	EventBus   *event.Bus
	Registerer prometheus.Registerer
}

type Metrics struct {
	QuizzesCreated     prometheus.Counter
	Submissions        prometheus.Counter
	SubmissionsAborted prometheus.Counter
	Percentile         prometheus.Histogram
	ScoreRatio         prometheus.Histogram
}

// New registers the collectors and subscribes them to the event bus.
func New(c Config) (*Metrics, error) {
	m := &Metrics{
		QuizzesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quizzes_created_total",
			Help:      "Number of quizzes created.",
		}),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Number of submissions recorded.",
		}),
		SubmissionsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_aborted_total",
			Help:      "Number of submissions dropped after too many conflicting statistics updates.",
		}),
		Percentile: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_percentile",
			Help:      "Percentile reported to respondents.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		ScoreRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_score_ratio",
			Help:      "Score over number of questions per submission.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}

	for _, col := range []prometheus.Collector{m.QuizzesCreated, m.Submissions, m.SubmissionsAborted, m.Percentile, m.ScoreRatio} {
		if err := c.Registerer.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	c.EventBus.Subscribe(domain.EventNameQuizCreated, func(context.Context, event.Event) error {
		m.QuizzesCreated.Inc()
		return nil
	})

	c.EventBus.Subscribe(domain.EventNameSubmissionRecorded, func(_ context.Context, e event.Event) error {
		m.observeSubmission(e.(domain.EventSubmissionRecorded))
		return nil
	})

	c.EventBus.Subscribe(domain.EventNameSubmissionLostRetry, func(context.Context, event.Event) error {
		m.SubmissionsAborted.Inc()
		return nil
	})

	return m, nil
}

func (m *Metrics) observeSubmission(e domain.EventSubmissionRecorded) {
	m.Submissions.Inc()
	m.Percentile.Observe(float64(e.Percentile))
	if e.Total > 0 {
		m.ScoreRatio.Observe(float64(e.Score) / float64(e.Total))
	}
}
