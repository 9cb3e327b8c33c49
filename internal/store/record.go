package store

import (
	"time"

	"github.com/victornm/openquiz/internal/domain"
)

// Persisted shapes. Field names are part of the stored format.
type (
	quizRecord struct {
		ID        string           `json:"id"`
		Title     string           `json:"title"`
		Thumbnail *string          `json:"thumbnail"`
		Questions []questionRecord `json:"questions"`
		CreatedAt int64            `json:"createdAt"`
	}

	questionRecord struct {
		Text          string   `json:"text"`
		Images        []string `json:"images"`
		Answers       []string `json:"answers"`
		CorrectAnswer int      `json:"correctAnswer"`
	}

	statsRecord struct {
		Submissions []int `json:"submissions"`
		TotalCount  int64 `json:"totalCount"`
	}
)

func toQuizRecord(q domain.Quiz) quizRecord {
	r := quizRecord{
		ID:        q.ID,
		Title:     q.Title,
		Questions: make([]questionRecord, 0, len(q.Questions)),
		CreatedAt: q.CreatedAt.UnixMilli(),
	}
	if q.Thumbnail != "" {
		thumb := q.Thumbnail
		r.Thumbnail = &thumb
	}

	for _, qq := range q.Questions {
		images := qq.Images
		if images == nil {
			images = []string{}
		}
		r.Questions = append(r.Questions, questionRecord{
			Text:          qq.Text,
			Images:        images,
			Answers:       qq.Answers,
			CorrectAnswer: qq.CorrectAnswer,
		})
	}

	return r
}

func (r quizRecord) toDomain() domain.Quiz {
	q := domain.Quiz{
		ID:        r.ID,
		Title:     r.Title,
		Questions: make([]domain.Question, 0, len(r.Questions)),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.Thumbnail != nil {
		q.Thumbnail = *r.Thumbnail
	}

	for _, qq := range r.Questions {
		q.Questions = append(q.Questions, domain.Question{
			Text:          qq.Text,
			Images:        qq.Images,
			Answers:       qq.Answers,
			CorrectAnswer: qq.CorrectAnswer,
		})
	}

	return q
}

func toStatsRecord(s domain.Statistics) statsRecord {
	subs := s.Submissions
	if subs == nil {
		subs = []int{}
	}
	return statsRecord{Submissions: subs, TotalCount: s.TotalCount}
}

func (r statsRecord) toDomain() domain.Statistics {
	return domain.Statistics{Submissions: r.Submissions, TotalCount: r.TotalCount}
}
