// Package grading compares a respondent's answers with a quiz's answer key.
package grading

import (
	"github.com/victornm/openquiz/internal/domain"
)

// Grade returns one result per question, in question order. An answer that is
// missing, absent or out of range counts as incorrect; answers beyond the last
// question are ignored.
func Grade(questions []domain.Question, answers []domain.Answer) domain.Grade {
	g := domain.Grade{
		Total:   len(questions),
		Results: make([]domain.QuestionResult, 0, len(questions)),
	}

	for i, q := range questions {
		a := domain.NoAnswer
		if i < len(answers) {
			a = answers[i]
		}

		ok := a.Matches(q.CorrectAnswer)
		if ok {
			g.Score++
		}

		g.Results = append(g.Results, domain.QuestionResult{
			QuestionIndex: i,
			UserAnswer:    a,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     ok,
		})
	}

	return g
}
