package domain

import (
	"time"
)

// Quiz is immutable once created. It is keyed by its 6 character code.
type Quiz struct {
	ID        string
	Title     string
	Thumbnail string // empty when the quiz has none
	Questions []Question
	CreatedAt time.Time
}

// Question order inside a quiz is meaningful: it determines the numbering and
// the index used for grading.
type Question struct {
	Text   string
	Images []string
	// Answers are shown in order, the index of an answer is its identity.
	Answers       []string
	CorrectAnswer int
}

// Statistics is the per-quiz record updated once per accepted submission.
// Submissions holds the most recent scores, oldest first, while TotalCount
// keeps counting after the window starts evicting.
type Statistics struct {
	Submissions []int
	TotalCount  int64
}

// Answer is a respondent's choice for one question. An answer that is not
// Valid (null, missing, not an integer) never matches any answer index.
type Answer struct {
	Index int
	Valid bool
}

func AnswerOf(index int) Answer {
	return Answer{Index: index, Valid: true}
}

// NoAnswer is an absent answer.
var NoAnswer = Answer{}

func (a Answer) Matches(correct int) bool {
	return a.Valid && a.Index == correct
}

// Ptr returns the index as a pointer, nil when the answer is absent.
func (a Answer) Ptr() *int {
	if !a.Valid {
		return nil
	}
	i := a.Index
	return &i
}

type QuestionResult struct {
	QuestionIndex int
	UserAnswer    Answer
	CorrectAnswer int
	IsCorrect     bool
}

// Grade is the outcome of one submission against a quiz's answer key.
type Grade struct {
	Score   int
	Total   int
	Results []QuestionResult
}
