package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketline/backend/internal/models"
)

func question(qtype string, opts ...models.QuestionOption) *models.Question {
	return &models.Question{ID: uuid.New(), Type: qtype, Options: opts}
}

func TestNormalizeAnswerUnknownQuestion(t *testing.T) {
	_, aerr := NormalizeAnswer(nil, AnswerRequest{Answer: "x"})
	require.NotNil(t, aerr)
	assert.Equal(t, "question", aerr.Field)
	assert.Equal(t, msgQuestionWrongEvent, aerr.Message)
}

func TestNormalizeAnswerString(t *testing.T) {
	a, aerr := NormalizeAnswer(question(models.QuestionTypeString), AnswerRequest{Answer: "S"})
	require.Nil(t, aerr)
	assert.Equal(t, "S", a.Answer)
}

func TestNormalizeAnswerNumber(t *testing.T) {
	a, aerr := NormalizeAnswer(question(models.QuestionTypeNumber), AnswerRequest{Answer: "3.45"})
	require.Nil(t, aerr)
	assert.Equal(t, "3.45", a.Answer)

	_, aerr = NormalizeAnswer(question(models.QuestionTypeNumber), AnswerRequest{Answer: "foo"})
	require.NotNil(t, aerr)
	assert.Equal(t, msgNumberInvalid, aerr.Message)
}

func TestNormalizeAnswerBoolean(t *testing.T) {
	for _, in := range []string{"True", "true", "1"} {
		a, aerr := NormalizeAnswer(question(models.QuestionTypeBoolean), AnswerRequest{Answer: in})
		require.Nil(t, aerr, in)
		assert.Equal(t, "True", a.Answer)
	}
	for _, in := range []string{"False", "false", "0"} {
		a, aerr := NormalizeAnswer(question(models.QuestionTypeBoolean), AnswerRequest{Answer: in})
		require.Nil(t, aerr, in)
		assert.Equal(t, "False", a.Answer)
	}
	_, aerr := NormalizeAnswer(question(models.QuestionTypeBoolean), AnswerRequest{Answer: "bla"})
	require.NotNil(t, aerr)
	assert.Equal(t, msgBooleanInvalid, aerr.Message)
}

func TestNormalizeAnswerDateFormats(t *testing.T) {
	a, aerr := NormalizeAnswer(question(models.QuestionTypeDate), AnswerRequest{Answer: "2018-05-14"})
	require.Nil(t, aerr)
	assert.Equal(t, "2018-05-14", a.Answer)

	_, aerr = NormalizeAnswer(question(models.QuestionTypeDate), AnswerRequest{Answer: "bla"})
	require.NotNil(t, aerr)
	assert.Equal(t, msgDateInvalid, aerr.Message)

	a, aerr = NormalizeAnswer(question(models.QuestionTypeDatetime), AnswerRequest{Answer: "2018-05-14T13:00:00Z"})
	require.Nil(t, aerr)
	assert.Equal(t, "2018-05-14 13:00:00+00:00", a.Answer)

	_, aerr = NormalizeAnswer(question(models.QuestionTypeDatetime), AnswerRequest{Answer: "bla"})
	require.NotNil(t, aerr)
	assert.Equal(t, msgDatetimeInvalid, aerr.Message)

	a, aerr = NormalizeAnswer(question(models.QuestionTypeTime), AnswerRequest{Answer: "13:00:00"})
	require.Nil(t, aerr)
	assert.Equal(t, "13:00:00", a.Answer)

	a, aerr = NormalizeAnswer(question(models.QuestionTypeTime), AnswerRequest{Answer: "13:00"})
	require.Nil(t, aerr)
	assert.Equal(t, "13:00:00", a.Answer)

	_, aerr = NormalizeAnswer(question(models.QuestionTypeTime), AnswerRequest{Answer: "bla"})
	require.NotNil(t, aerr)
	assert.Equal(t, msgTimeInvalid, aerr.Message)
}

func TestNormalizeAnswerChoice(t *testing.T) {
	optXL := models.QuestionOption{ID: uuid.New(), Answer: "XL"}
	optL := models.QuestionOption{ID: uuid.New(), Answer: "L"}

	// options on a non-choice question
	_, aerr := NormalizeAnswer(question(models.QuestionTypeString),
		AnswerRequest{Options: []uuid.UUID{optXL.ID}})
	require.NotNil(t, aerr)
	assert.Equal(t, msgOptionsNotChoice, aerr.Message)

	// choice without options
	_, aerr = NormalizeAnswer(question(models.QuestionTypeChoice, optXL, optL), AnswerRequest{})
	require.NotNil(t, aerr)
	assert.Equal(t, msgOptionsRequired, aerr.Message)

	// single choice with two options
	_, aerr = NormalizeAnswer(question(models.QuestionTypeChoice, optXL, optL),
		AnswerRequest{Options: []uuid.UUID{optXL.ID, optL.ID}})
	require.NotNil(t, aerr)
	assert.Equal(t, msgOptionsTooMany, aerr.Message)

	// multiple choice joins the option texts
	a, aerr := NormalizeAnswer(question(models.QuestionTypeChoiceMultiple, optXL, optL),
		AnswerRequest{Options: []uuid.UUID{optXL.ID, optL.ID}})
	require.Nil(t, aerr)
	assert.Equal(t, "XL, L", a.Answer)
	assert.Equal(t, []uuid.UUID{optXL.ID, optL.ID}, a.OptionIDs)

	// foreign option
	_, aerr = NormalizeAnswer(question(models.QuestionTypeChoice, optXL),
		AnswerRequest{Options: []uuid.UUID{uuid.New()}})
	require.NotNil(t, aerr)
	assert.Equal(t, msgOptionWrongQuestion, aerr.Message)
}

func TestNormalizeAnswerFile(t *testing.T) {
	_, aerr := NormalizeAnswer(question(models.QuestionTypeFile), AnswerRequest{Answer: "x"})
	require.NotNil(t, aerr)
	assert.Equal(t, msgFileNotSupported, aerr.Message)
}
