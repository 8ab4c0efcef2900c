package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketline/backend/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	event   *models.Event
	cat     *catalog
	item    *models.Item
	taxRule *models.TaxRule
}

func newFixture() *fixture {
	taxRule := &models.TaxRule{ID: uuid.New(), Rate: dec("19.00"), PriceIncludesTax: true}
	item := &models.Item{ID: uuid.New(), Active: true, DefaultPrice: dec("23.00")}
	event := &models.Event{
		ID:       uuid.New(),
		Slug:     "dummy",
		Currency: "EUR",
		Settings: models.EventSettings{PaymentProviders: []string{"banktransfer"}},
	}
	return &fixture{
		event:   event,
		item:    item,
		taxRule: taxRule,
		cat: &catalog{
			items:      map[uuid.UUID]*models.Item{item.ID: item},
			variations: map[uuid.UUID]*models.ItemVariation{},
			subevents:  map[uuid.UUID]bool{},
			taxRules:   map[uuid.UUID]*models.TaxRule{taxRule.ID: taxRule},
			questions:  map[uuid.UUID]*models.Question{},
		},
	}
}

func (f *fixture) request() *CreateRequest {
	return &CreateRequest{
		Locale:          "en",
		PaymentProvider: "banktransfer",
		Positions: []PositionRequest{
			{Item: f.item.ID, Price: dec("23.00")},
		},
	}
}

func shape(t *testing.T, f *fixture, req *CreateRequest) (*models.Order, error) {
	t.Helper()
	return (&CreateService{}).validateShape(f.event, f.cat, req)
}

func fieldMessages(t *testing.T, err error, field string) []string {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	msgs, ok := verr.Fields[field].([]string)
	require.True(t, ok, "field %q not a message list: %v", field, verr.Fields)
	return msgs
}

func positionFieldMessages(t *testing.T, err error, idx int, field string) []string {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	list, ok := verr.Fields["positions"].([]interface{})
	require.True(t, ok)
	require.Greater(t, len(list), idx)
	entry, ok := list[idx].(map[string]interface{})
	require.True(t, ok)
	msgs, ok := entry[field].([]string)
	require.True(t, ok, "field %q missing: %v", field, entry)
	return msgs
}

func TestCreateValidStatusOnly(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Status = "e"
	_, err := shape(t, f, req)
	assert.Equal(t, []string{`"e" is not a valid choice.`}, fieldMessages(t, err, "status"))
}

func TestCreateProviderRequired(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.PaymentProvider = ""
	_, err := shape(t, f, req)
	assert.Equal(t, []string{msgProviderRequired}, fieldMessages(t, err, "payment_provider"))
}

func TestCreateProviderUnknown(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.PaymentProvider = "foo"
	_, err := shape(t, f, req)
	assert.Equal(t, []string{msgProviderUnknown}, fieldMessages(t, err, "payment_provider"))
}

func TestCreateEmptyOrder(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Positions = nil
	_, err := shape(t, f, req)
	assert.Equal(t, []string{msgOrderEmpty}, fieldMessages(t, err, "positions"))
}

func TestCreateFeeValidation(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Fees = []FeeRequest{{FeeType: "unknown", Value: dec("0.25")}}
	_, err := shape(t, f, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	list := verr.Fields["fees"].([]interface{})
	entry := list[0].(map[string]interface{})
	assert.Equal(t, []string{`"unknown" is not a valid choice.`}, entry["fee_type"])

	foreign := uuid.New()
	req.Fees = []FeeRequest{{FeeType: models.FeeTypePayment, Value: dec("0.25"), TaxRule: &foreign}}
	_, err = shape(t, f, req)
	require.ErrorAs(t, err, &verr)
	entry = verr.Fields["fees"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []string{msgFeeTaxRuleWrongEvent}, entry["tax_rule"])
}

func TestCreateFeeTax(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Fees = []FeeRequest{{FeeType: models.FeeTypePayment, Value: dec("0.25"), TaxRule: &f.taxRule.ID}}
	order, err := shape(t, f, req)
	require.NoError(t, err)
	require.Len(t, order.Fees, 1)
	assert.True(t, order.Fees[0].TaxRate.Equal(dec("19.00")))
	assert.Equal(t, "23.25", order.Total.StringFixed(2))
}

func TestCreateItemValidation(t *testing.T) {
	f := newFixture()

	req := f.request()
	req.Positions[0].Item = uuid.New()
	_, err := shape(t, f, req)
	assert.Equal(t, []string{msgItemWrongEvent}, positionFieldMessages(t, err, 0, "item"))

	f.item.Active = false
	req = f.request()
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgItemInactive}, positionFieldMessages(t, err, 0, "item"))
}

func TestCreateVariationValidation(t *testing.T) {
	f := newFixture()

	// variation given, item has none
	foreign := uuid.New()
	req := f.request()
	req.Positions[0].Variation = &foreign
	_, err := shape(t, f, req)
	assert.Equal(t, []string{msgVariationNotAllowed}, positionFieldMessages(t, err, 0, "non_field_errors"))

	// item has variations, none given
	v := &models.ItemVariation{ID: uuid.New(), ItemID: f.item.ID, Value: "A"}
	f.cat.variations[v.ID] = v
	req = f.request()
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgVariationRequired}, positionFieldMessages(t, err, 0, "non_field_errors"))

	// variation of another item
	other := &models.ItemVariation{ID: uuid.New(), ItemID: uuid.New(), Value: "B"}
	f.cat.variations[other.ID] = other
	req = f.request()
	req.Positions[0].Variation = &other.ID
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgVariationWrongItem}, positionFieldMessages(t, err, 0, "non_field_errors"))

	// matching variation passes
	req = f.request()
	req.Positions[0].Variation = &v.ID
	order, err := shape(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, &v.ID, order.Positions[0].VariationID)
}

func TestCreateSubeventValidation(t *testing.T) {
	f := newFixture()
	se := uuid.New()

	// subevent on a plain event
	req := f.request()
	req.Positions[0].SubEvent = &se
	_, err := shape(t, f, req)
	assert.Equal(t, []string{msgSubeventNotAllowed}, positionFieldMessages(t, err, 0, "subevent"))

	f.event.HasSubevents = true

	req = f.request()
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgSubeventRequired}, positionFieldMessages(t, err, 0, "subevent"))

	req = f.request()
	req.Positions[0].SubEvent = &se
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgSubeventWrongEvent}, positionFieldMessages(t, err, 0, "subevent"))

	f.cat.subevents[se] = true
	req = f.request()
	req.Positions[0].SubEvent = &se
	_, err = shape(t, f, req)
	assert.NoError(t, err)
}

func intp(n int) *int { return &n }

func TestCreatePositionIDRules(t *testing.T) {
	f := newFixture()

	pos := func(id *int, addon *int) PositionRequest {
		return PositionRequest{PositionID: id, Item: f.item.ID, Price: dec("23.00"), AddonTo: addon}
	}

	// addon_to referencing itself
	req := f.request()
	req.Positions = []PositionRequest{pos(intp(1), nil), pos(intp(2), intp(2))}
	_, err := shape(t, f, req)
	assert.Equal(t, []string{msgAddonBeforePosition}, fieldMessages(t, err, "positions"))

	// addon without manual ids
	req.Positions = []PositionRequest{pos(nil, nil), pos(nil, intp(2))}
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgAddonNeedsManualIDs}, fieldMessages(t, err, "positions"))

	// mixed manual and generated
	req.Positions = []PositionRequest{pos(intp(1), nil), pos(nil, nil)}
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgManualIDsAllOrNone}, fieldMessages(t, err, "positions"))

	// gap in numbering
	req.Positions = []PositionRequest{pos(intp(1), nil), pos(intp(3), nil)}
	_, err = shape(t, f, req)
	assert.Equal(t, []string{msgPositionIDsGapless}, fieldMessages(t, err, "positions"))

	// valid addon chain
	req.Positions = []PositionRequest{pos(intp(1), nil), pos(intp(2), intp(1))}
	order, err := shape(t, f, req)
	require.NoError(t, err)
	require.Len(t, order.Positions, 2)
	assert.Equal(t, 1, order.Positions[0].PositionID)
	assert.Equal(t, 2, order.Positions[1].PositionID)
	assert.Equal(t, intp(1), order.Positions[1].AddonTo)

	// generated ids count up from one
	req.Positions = []PositionRequest{pos(nil, nil), pos(nil, nil)}
	order, err = shape(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, 1, order.Positions[0].PositionID)
	assert.Equal(t, 2, order.Positions[1].PositionID)
}

func TestCreateInclusiveTax(t *testing.T) {
	f := newFixture()
	f.item.TaxRuleID = &f.taxRule.ID

	order, err := shape(t, f, f.request())
	require.NoError(t, err)
	pos := order.Positions[0]
	assert.True(t, pos.TaxRate.Equal(dec("19.00")))
	assert.Equal(t, "3.67", pos.TaxValue.StringFixed(2))
	assert.Equal(t, "23.00", order.Total.StringFixed(2))
}

func TestCreateFreeOrder(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Positions[0].Price = dec("0.00")
	order, err := shape(t, f, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "free", order.PaymentProvider)
	assert.True(t, order.Total.IsZero())
}

func TestCreateFreeProviderNonFreeOrder(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.PaymentProvider = "free"
	_, err := shape(t, f, req)
	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, msgFreeProviderNonFree, rerr.Message)
}

func TestCreateAnswerWiring(t *testing.T) {
	f := newFixture()
	q := &models.Question{ID: uuid.New(), EventID: f.event.ID, Type: models.QuestionTypeString}
	f.cat.questions[q.ID] = q

	req := f.request()
	req.Positions[0].Answers = []AnswerRequest{{Question: q.ID, Answer: "S"}}
	order, err := shape(t, f, req)
	require.NoError(t, err)
	require.Len(t, order.Positions[0].Answers, 1)
	assert.Equal(t, "S", order.Positions[0].Answers[0].Answer)

	req.Positions[0].Answers = []AnswerRequest{{Question: uuid.New(), Answer: "S"}}
	_, err = shape(t, f, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTaxFromInclusive(t *testing.T) {
	assert.Equal(t, "3.67", taxFromInclusive(dec("23.00"), dec("19.00")).StringFixed(2))
	assert.Equal(t, "0.04", taxFromInclusive(dec("0.25"), dec("19.00")).StringFixed(2))
	assert.Equal(t, "0.00", taxFromInclusive(dec("23.00"), dec("0")).StringFixed(2))
}

func TestPositionErrorShape(t *testing.T) {
	errs := positionError(2, 1, "item", msgItemInactive)
	list := errs["positions"].([]interface{})
	require.Len(t, list, 2)
	assert.Empty(t, list[0].(map[string]interface{}))
	assert.Equal(t, []string{msgItemInactive}, list[1].(map[string]interface{})["item"])
}
