package api

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/submission"
)

type (
	createQuizBody struct {
		Title     string         `json:"title"`
		Thumbnail string         `json:"thumbnail"`
		Questions []questionBody `json:"questions"`
	}

	questionBody struct {
		Text          string   `json:"text"`
		Images        []string `json:"images"`
		Answers       []string `json:"answers"`
		CorrectAnswer *int     `json:"correctAnswer"`
	}

	createQuizResult struct {
		Success bool   `json:"success"`
		QuizID  string `json:"quizId"`
	}

	// quizView is a quiz as shown to respondents, without its answer key.
	quizView struct {
		ID        string         `json:"id"`
		Title     string         `json:"title"`
		Thumbnail *string        `json:"thumbnail"`
		Questions []questionView `json:"questions"`
		CreatedAt int64          `json:"createdAt"`
	}

	questionView struct {
		Text    string   `json:"text"`
		Images  []string `json:"images"`
		Answers []string `json:"answers"`
	}

	uploadResult struct {
		Success  bool   `json:"success"`
		ImageURL string `json:"imageUrl"`
	}

	submitBody struct {
		QuizID  string          `json:"quizId"`
		Answers json.RawMessage `json:"answers"`
	}

	submitResult struct {
		Success    bool         `json:"success"`
		Score      int          `json:"score"`
		Total      int          `json:"total"`
		Percentile int          `json:"percentile"`
		Results    []resultView `json:"results"`
	}

	resultView struct {
		QuestionIndex int  `json:"questionIndex"`
		UserAnswer    *int `json:"userAnswer"`
		CorrectAnswer int  `json:"correctAnswer"`
		IsCorrect     bool `json:"isCorrect"`
	}

	statsResult struct {
		TotalCount int64 `json:"totalCount"`
	}

	errorResult struct {
		Error string `json:"error"`
	}
)

func (b createQuizBody) toRequest() quiz.CreateQuizRequest {
	req := quiz.CreateQuizRequest{
		Title:     b.Title,
		Thumbnail: b.Thumbnail,
		Questions: make([]quiz.QuestionInput, 0, len(b.Questions)),
	}
	for _, q := range b.Questions {
		req.Questions = append(req.Questions, quiz.QuestionInput{
			Text:          q.Text,
			Images:        q.Images,
			Answers:       q.Answers,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return req
}

func toQuizView(q *domain.Quiz) quizView {
	v := quizView{
		ID:        q.ID,
		Title:     q.Title,
		Questions: make([]questionView, 0, len(q.Questions)),
		CreatedAt: q.CreatedAt.UnixMilli(),
	}
	if q.Thumbnail != "" {
		v.Thumbnail = &q.Thumbnail
	}
	for _, qq := range q.Questions {
		v.Questions = append(v.Questions, questionView{
			Text:    qq.Text,
			Images:  nonNil(qq.Images),
			Answers: qq.Answers,
		})
	}
	return v
}

func toSubmitResult(resp *submission.SubmitResponse) submitResult {
	r := submitResult{
		Success:    true,
		Score:      resp.Score,
		Total:      resp.Total,
		Percentile: resp.Percentile,
		Results:    make([]resultView, 0, len(resp.Results)),
	}
	for _, res := range resp.Results {
		r.Results = append(r.Results, resultView{
			QuestionIndex: res.QuestionIndex,
			UserAnswer:    res.UserAnswer.Ptr(),
			CorrectAnswer: res.CorrectAnswer,
			IsCorrect:     res.IsCorrect,
		})
	}
	return r
}

// parseAnswers decodes the answers of a submission. The value itself must be
// an array; elements that are not integral numbers (null, strings, 1.5) are
// kept as absent answers so they are graded as wrong.
func parseAnswers(raw json.RawMessage) ([]domain.Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errors.InvalidArgumentf("answers must be an array")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("answers must be an array"),
			errors.WithCause(err),
		)
	}

	answers := make([]domain.Answer, 0, len(elems))
	for _, e := range elems {
		answers = append(answers, parseAnswer(e))
	}
	return answers, nil
}

// maxAnswerLiteral bounds the length and the exponent of an answer literal
// before any decimal math is done on it.
const maxAnswerLiteral = 32

var (
	minAnswer = decimal.NewFromInt(math.MinInt32)
	maxAnswer = decimal.NewFromInt(math.MaxInt32)
)

func parseAnswer(raw json.RawMessage) domain.Answer {
	raw = bytes.TrimSpace(raw)
	if len(raw) > maxAnswerLiteral {
		return domain.NoAnswer
	}

	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return domain.NoAnswer
	}
	if d.IsZero() {
		return domain.AnswerOf(0)
	}
	if exp := d.Exponent(); exp < -maxAnswerLiteral || exp > maxAnswerLiteral {
		return domain.NoAnswer
	}
	if !d.IsInteger() {
		return domain.NoAnswer
	}
	// Out of range integers can never match an answer index.
	if d.LessThan(minAnswer) || d.GreaterThan(maxAnswer) {
		return domain.NoAnswer
	}
	return domain.AnswerOf(int(d.IntPart()))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
