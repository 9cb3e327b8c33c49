package grading_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/grading"
)

func TestGrade(t *testing.T) {
	questions := []domain.Question{
		{Text: "q1", Answers: []string{"a", "b"}, CorrectAnswer: 0},
		{Text: "q2", Answers: []string{"a", "b", "c"}, CorrectAnswer: 2},
		{Text: "q3", Answers: []string{"a", "b"}, CorrectAnswer: 1},
	}

	tests := map[string]struct {
		answers     []domain.Answer
		wantScore   int
		wantCorrect []bool
	}{
		"all correct": {
			answers:     []domain.Answer{domain.AnswerOf(0), domain.AnswerOf(2), domain.AnswerOf(1)},
			wantScore:   3,
			wantCorrect: []bool{true, true, true},
		},
		"all wrong": {
			answers:     []domain.Answer{domain.AnswerOf(1), domain.AnswerOf(0), domain.AnswerOf(0)},
			wantScore:   0,
			wantCorrect: []bool{false, false, false},
		},
		"shorter answers should count missing as incorrect": {
			answers:     []domain.Answer{domain.AnswerOf(0)},
			wantScore:   1,
			wantCorrect: []bool{true, false, false},
		},
		"extra answers should be ignored": {
			answers:     []domain.Answer{domain.AnswerOf(0), domain.AnswerOf(2), domain.AnswerOf(1), domain.AnswerOf(5)},
			wantScore:   3,
			wantCorrect: []bool{true, true, true},
		},
		"absent answers should never match": {
			answers:     []domain.Answer{domain.NoAnswer, domain.AnswerOf(2), domain.NoAnswer},
			wantScore:   1,
			wantCorrect: []bool{false, true, false},
		},
		"absent answer with zero index should not match a zero key": {
			answers:     []domain.Answer{{Index: 0, Valid: false}},
			wantScore:   0,
			wantCorrect: []bool{false, false, false},
		},
		"out of range answers should be incorrect": {
			answers:     []domain.Answer{domain.AnswerOf(-1), domain.AnswerOf(99), domain.AnswerOf(1)},
			wantScore:   1,
			wantCorrect: []bool{false, false, true},
		},
		"no answers": {
			answers:     nil,
			wantScore:   0,
			wantCorrect: []bool{false, false, false},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			g := grading.Grade(questions, tt.answers)

			assert.Equal(t, tt.wantScore, g.Score)
			assert.Equal(t, len(questions), g.Total)
			require.Len(t, g.Results, len(questions))
			for i, r := range g.Results {
				assert.Equal(t, i, r.QuestionIndex)
				assert.Equal(t, questions[i].CorrectAnswer, r.CorrectAnswer)
				assert.Equal(t, tt.wantCorrect[i], r.IsCorrect, "question %d", i)
			}
		})
	}
}

func TestGrade_EchoesUserAnswer(t *testing.T) {
	questions := []domain.Question{
		{Text: "q1", Answers: []string{"a", "b"}, CorrectAnswer: 0},
		{Text: "q2", Answers: []string{"a", "b"}, CorrectAnswer: 0},
	}

	g := grading.Grade(questions, []domain.Answer{domain.AnswerOf(1)})

	require.NotNil(t, g.Results[0].UserAnswer.Ptr())
	assert.Equal(t, 1, *g.Results[0].UserAnswer.Ptr())
	assert.Nil(t, g.Results[1].UserAnswer.Ptr())
}
