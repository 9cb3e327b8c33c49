package domain

const (
	EventNameQuizCreated         = "quiz.created"
	EventNameSubmissionRecorded  = "submission.recorded"
	EventNameSubmissionLostRetry = "submission.lost_retry"
)

type EventQuizCreated struct {
	Quiz Quiz
}

func (EventQuizCreated) Name() string { return EventNameQuizCreated }

// EventSubmissionRecorded is published once the statistics record of a quiz
// has been updated with a new score.
type EventSubmissionRecorded struct {
	QuizID     string
	Score      int
	Total      int
	Percentile int
	TotalCount int64
	WindowSize int
}

func (EventSubmissionRecorded) Name() string { return EventNameSubmissionRecorded }

// EventSubmissionLostRetry is published when a statistics update gave up
// after exhausting its optimistic retries.
type EventSubmissionLostRetry struct {
	QuizID string
}

func (EventSubmissionLostRetry) Name() string { return EventNameSubmissionLostRetry }
