package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ticketline/backend/internal/models"
)

// Answer validation messages.
const (
	msgQuestionWrongEvent  = "The specified question does not belong to this event."
	msgOptionsNotChoice    = "You should not specify options if the question is not of a choice type."
	msgOptionsRequired     = "You need to specify options if the question is of a choice type."
	msgOptionsTooMany      = "You can specify at most one option for this question."
	msgOptionWrongQuestion = "The specified option does not belong to this question."
	msgFileNotSupported    = "File uploads are currently not supported via the API."
	msgNumberInvalid       = "A valid number is required."
	msgBooleanInvalid      = `Please specify "true" or "false" for boolean questions.`
	msgDateInvalid         = "Date has wrong format. Use one of these formats instead: YYYY[-MM[-DD]]."
	msgDatetimeInvalid     = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
	msgTimeInvalid         = "Time has wrong format. Use one of these formats instead: hh:mm[:ss[.uuuuuu]]."
)

// AnswerRequest is one submitted answer within an order position.
type AnswerRequest struct {
	Question uuid.UUID   `json:"question"`
	Answer   string      `json:"answer"`
	Options  []uuid.UUID `json:"options"`
}

// AnswerError is a client-facing rejection of one answer. Field is either
// "question" or "non_field_errors".
type AnswerError struct {
	Field   string
	Message string
}

func (e AnswerError) Error() string { return e.Message }

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
}

// NormalizeAnswer validates one answer against its question and returns the
// canonical stored form. The question must already be resolved; a nil
// question means it does not belong to the event.
func NormalizeAnswer(q *models.Question, req AnswerRequest) (models.Answer, *AnswerError) {
	if q == nil {
		return models.Answer{}, &AnswerError{"question", msgQuestionWrongEvent}
	}

	a := models.Answer{QuestionID: q.ID}

	if !q.IsChoiceType() && len(req.Options) > 0 {
		return a, &AnswerError{"non_field_errors", msgOptionsNotChoice}
	}

	switch q.Type {
	case models.QuestionTypeChoice, models.QuestionTypeChoiceMultiple:
		if len(req.Options) == 0 {
			return a, &AnswerError{"non_field_errors", msgOptionsRequired}
		}
		if q.Type == models.QuestionTypeChoice && len(req.Options) > 1 {
			return a, &AnswerError{"non_field_errors", msgOptionsTooMany}
		}
		texts := make([]string, 0, len(req.Options))
		for _, optID := range req.Options {
			var found *models.QuestionOption
			for i := range q.Options {
				if q.Options[i].ID == optID {
					found = &q.Options[i]
					break
				}
			}
			if found == nil {
				return a, &AnswerError{"non_field_errors", msgOptionWrongQuestion}
			}
			texts = append(texts, found.Answer)
		}
		a.OptionIDs = req.Options
		a.Answer = strings.Join(texts, ", ")

	case models.QuestionTypeFile:
		return a, &AnswerError{"non_field_errors", msgFileNotSupported}

	case models.QuestionTypeNumber:
		d, err := decimal.NewFromString(strings.TrimSpace(req.Answer))
		if err != nil {
			return a, &AnswerError{"non_field_errors", msgNumberInvalid}
		}
		a.Answer = d.String()

	case models.QuestionTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(req.Answer)) {
		case "true", "1", "yes":
			a.Answer = "True"
		case "false", "0", "no":
			a.Answer = "False"
		default:
			return a, &AnswerError{"non_field_errors", msgBooleanInvalid}
		}

	case models.QuestionTypeDate:
		t, err := time.Parse("2006-01-02", strings.TrimSpace(req.Answer))
		if err != nil {
			return a, &AnswerError{"non_field_errors", msgDateInvalid}
		}
		a.Answer = t.Format("2006-01-02")

	case models.QuestionTypeDatetime:
		var parsed time.Time
		var err error
		for _, layout := range datetimeLayouts {
			parsed, err = time.Parse(layout, strings.TrimSpace(req.Answer))
			if err == nil {
				break
			}
		}
		if err != nil {
			return a, &AnswerError{"non_field_errors", msgDatetimeInvalid}
		}
		a.Answer = parsed.Format("2006-01-02 15:04:05-07:00")

	case models.QuestionTypeTime:
		var parsed time.Time
		var err error
		for _, layout := range timeLayouts {
			parsed, err = time.Parse(layout, strings.TrimSpace(req.Answer))
			if err == nil {
				break
			}
		}
		if err != nil {
			return a, &AnswerError{"non_field_errors", msgTimeInvalid}
		}
		a.Answer = parsed.Format("15:04:05")

	default: // string and text questions store the raw value
		a.Answer = req.Answer
	}

	return a, nil
}
