package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/carts"
	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/internal/quotas"
	"github.com/ticketline/backend/pkg/lock"
	"github.com/ticketline/backend/pkg/queue"
	"github.com/ticketline/backend/pkg/response"
)

// Order creation messages.
const (
	msgOrderEmpty           = "An order cannot be empty."
	msgItemInactive         = "The specified item is not active."
	msgItemWrongEvent       = "The specified item does not belong to this event."
	msgSubeventNotAllowed   = "You cannot set a subevent for this event."
	msgSubeventRequired     = "You need to set a subevent."
	msgSubeventWrongEvent   = "The specified subevent does not belong to this event."
	msgVariationNotAllowed  = "You cannot specify a variation for this item."
	msgVariationWrongItem   = "The specified variation does not belong to the specified item."
	msgVariationRequired    = "You should specify a variation for this item."
	msgSecretExists         = "You cannot assign a position secret that already exists."
	msgAddonBeforePosition  = "If you set addon_to, you need to make sure that the referenced position ID exists and is transmitted directly before its add-ons."
	msgAddonNeedsManualIDs  = "If you set addon_to, you need to specify position IDs manually."
	msgManualIDsAllOrNone   = "If you set position IDs manually, you need to do so for all positions."
	msgPositionIDsGapless   = "Position IDs need to be consecutive."
	msgFeeTaxRuleWrongEvent = "The specified tax rate does not belong to this event."
	msgProviderRequired     = "This field is required."
	msgProviderUnknown      = "The given payment provider is not known."
	msgFreeProviderNonFree  = `You cannot use the "free" payment provider for non-free orders.`
	msgCartUnknown          = "The cart to be consumed does not exist."
)

// defaultExpiryDays is how long a newly placed pending order holds its quota.
const defaultExpiryDays = 14

// ValidationError carries a structured per-field rejection of the request.
type ValidationError struct {
	Fields response.FieldErrors
}

func (e *ValidationError) Error() string { return "order validation failed" }

// RequestError is a top-level rejection without a field association, e.g. a
// quota conflict.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// FeeRequest is one fee line of an order create request.
type FeeRequest struct {
	FeeType      string          `json:"fee_type"`
	Value        decimal.Decimal `json:"value"`
	Description  string          `json:"description"`
	InternalType string          `json:"internal_type"`
	TaxRule      *uuid.UUID      `json:"tax_rule"`
}

// PositionRequest is one position of an order create request.
type PositionRequest struct {
	PositionID    *int            `json:"positionid"`
	Item          uuid.UUID       `json:"item"`
	Variation     *uuid.UUID      `json:"variation"`
	Price         decimal.Decimal `json:"price"`
	AttendeeName  *string         `json:"attendee_name"`
	AttendeeEmail *string         `json:"attendee_email"`
	Secret        *string         `json:"secret"`
	AddonTo       *int            `json:"addon_to"`
	Answers       []AnswerRequest `json:"answers"`
	SubEvent      *uuid.UUID      `json:"subevent"`
}

// InvoiceAddressRequest is the optional billing address of a create request.
type InvoiceAddressRequest struct {
	IsBusiness        bool   `json:"is_business"`
	Company           string `json:"company"`
	Name              string `json:"name"`
	Street            string `json:"street"`
	Zipcode           string `json:"zipcode"`
	City              string `json:"city"`
	Country           string `json:"country"`
	InternalReference string `json:"internal_reference"`
	VatID             string `json:"vat_id"`
}

// CreateRequest is the body of POST .../orders/.
type CreateRequest struct {
	Code            string                 `json:"code"`
	Status          string                 `json:"status"`
	Email           *string                `json:"email"`
	Locale          string                 `json:"locale"`
	PaymentProvider string                 `json:"payment_provider"`
	PaymentInfo     json.RawMessage        `json:"payment_info"`
	Fees            []FeeRequest           `json:"fees"`
	InvoiceAddress  *InvoiceAddressRequest `json:"invoice_address"`
	Positions       []PositionRequest      `json:"positions"`
	ConsumeCarts    []string               `json:"consume_carts"`
}

// InvoiceIssuer generates invoices inside the order creation transaction.
// Implemented by the invoices package; wired in main.
type InvoiceIssuer interface {
	IssueForOrder(ctx context.Context, tx pgx.Tx, event *models.Event, order *models.Order) error
}

// CreateService validates and places orders.
type CreateService struct {
	pool     *pgxpool.Pool
	locks    *lock.Manager
	queue    *queue.Queue
	invoices InvoiceIssuer
	logger   *zap.Logger
}

// NewCreateService wires an order creation service.
func NewCreateService(pool *pgxpool.Pool, locks *lock.Manager, q *queue.Queue, inv InvoiceIssuer, logger *zap.Logger) *CreateService {
	return &CreateService{pool: pool, locks: locks, queue: q, invoices: inv, logger: logger}
}

// catalog caches the event's sellable configuration for one request.
type catalog struct {
	items      map[uuid.UUID]*models.Item
	variations map[uuid.UUID]*models.ItemVariation
	subevents  map[uuid.UUID]bool
	taxRules   map[uuid.UUID]*models.TaxRule
	questions  map[uuid.UUID]*models.Question
}

func loadCatalog(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (*catalog, error) {
	cat := &catalog{
		items:      map[uuid.UUID]*models.Item{},
		variations: map[uuid.UUID]*models.ItemVariation{},
		subevents:  map[uuid.UUID]bool{},
		taxRules:   map[uuid.UUID]*models.TaxRule{},
		questions:  map[uuid.UUID]*models.Question{},
	}

	rows, err := tx.Query(ctx,
		`SELECT id, event_id, name, default_price, active, admission, tax_rule_id, position
		 FROM items WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.EventID, &it.Name, &it.DefaultPrice, &it.Active,
			&it.Admission, &it.TaxRuleID, &it.Position); err != nil {
			rows.Close()
			return nil, err
		}
		cat.items[it.ID] = &it
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx,
		`SELECT v.id, v.item_id, v.value, v.default_price, v.position
		 FROM item_variations v JOIN items i ON i.id = v.item_id WHERE i.event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var v models.ItemVariation
		if err := rows.Scan(&v.ID, &v.ItemID, &v.Value, &v.DefaultPrice, &v.Position); err != nil {
			rows.Close()
			return nil, err
		}
		cat.variations[v.ID] = &v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT id FROM subevents WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		cat.subevents[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx,
		`SELECT id, event_id, name, rate, price_includes_tax FROM tax_rules WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var tr models.TaxRule
		if err := rows.Scan(&tr.ID, &tr.EventID, &tr.Name, &tr.Rate, &tr.PriceIncludesTax); err != nil {
			rows.Close()
			return nil, err
		}
		cat.taxRules[tr.ID] = &tr
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx,
		`SELECT id, event_id, question, type, required, identifier, position
		 FROM questions WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.EventID, &q.Question, &q.Type, &q.Required,
			&q.Identifier, &q.Position); err != nil {
			rows.Close()
			return nil, err
		}
		cat.questions[q.ID] = &q
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orows, err := tx.Query(ctx,
		`SELECT o.id, o.question_id, o.answer, o.identifier
		 FROM question_options o JOIN questions q ON q.id = o.question_id WHERE q.event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	for orows.Next() {
		var opt models.QuestionOption
		if err := orows.Scan(&opt.ID, &opt.QuestionID, &opt.Answer, &opt.Identifier); err != nil {
			orows.Close()
			return nil, err
		}
		if q, ok := cat.questions[opt.QuestionID]; ok {
			q.Options = append(q.Options, opt)
		}
	}
	orows.Close()
	return cat, orows.Err()
}

// taxFromInclusive computes the tax share contained in a gross price.
func taxFromInclusive(gross decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero.Round(2)
	}
	divisor := decimal.New(1, 0).Add(rate.Div(decimal.New(100, 0)))
	return gross.Sub(gross.Div(divisor)).Round(2)
}

func positionError(count, idx int, field, msg string) response.FieldErrors {
	list := make([]interface{}, count)
	for i := range list {
		if i == idx {
			list[i] = map[string]interface{}{field: []string{msg}}
		} else {
			list[i] = map[string]interface{}{}
		}
	}
	return response.FieldErrors{"positions": list}
}

func answerError(count, posIdx, ansIdx int, e *AnswerError) response.FieldErrors {
	answers := make([]interface{}, ansIdx+1)
	for i := range answers {
		answers[i] = map[string]interface{}{}
	}
	answers[ansIdx] = map[string]interface{}{e.Field: []string{e.Message}}
	return positionErrorNested(count, posIdx, "answers", answers)
}

func positionErrorNested(count, idx int, field string, value interface{}) response.FieldErrors {
	list := make([]interface{}, count)
	for i := range list {
		if i == idx {
			list[i] = map[string]interface{}{field: value}
		} else {
			list[i] = map[string]interface{}{}
		}
	}
	return response.FieldErrors{"positions": list}
}

func feeError(count, idx int, field, msg string) response.FieldErrors {
	list := make([]interface{}, count)
	for i := range list {
		if i == idx {
			list[i] = map[string]interface{}{field: []string{msg}}
		} else {
			list[i] = map[string]interface{}{}
		}
	}
	return response.FieldErrors{"fees": list}
}

// validateShape checks everything that does not need database state beyond
// the catalog: status, fees, position ids, item and subevent relations and
// answers. It fills in computed taxes and returns the normalized order.
func (s *CreateService) validateShape(event *models.Event, cat *catalog, req *CreateRequest) (*models.Order, error) {
	switch req.Status {
	case "", models.OrderStatusPending, models.OrderStatusPaid:
	default:
		return nil, &ValidationError{response.FieldErrors{
			"status": []string{fmt.Sprintf("%q is not a valid choice.", req.Status)},
		}}
	}

	if req.PaymentProvider == "" {
		return nil, &ValidationError{response.FieldErrors{"payment_provider": []string{msgProviderRequired}}}
	}
	if !event.Settings.PaymentProviderEnabled(req.PaymentProvider) {
		return nil, &ValidationError{response.FieldErrors{"payment_provider": []string{msgProviderUnknown}}}
	}

	if len(req.Positions) == 0 {
		return nil, &ValidationError{response.FieldErrors{"positions": []string{msgOrderEmpty}}}
	}

	order := &models.Order{
		EventID: event.ID,
		Status:  models.OrderStatusPending,
		Email:   req.Email,
		Locale:  req.Locale,
	}
	if order.Locale == "" {
		order.Locale = "en"
	}
	if req.Status == models.OrderStatusPaid {
		order.Status = models.OrderStatusPaid
	}

	for i, fee := range req.Fees {
		if !models.ValidFeeType(fee.FeeType) {
			return nil, &ValidationError{feeError(len(req.Fees), i,
				"fee_type", fmt.Sprintf("%q is not a valid choice.", fee.FeeType))}
		}
		f := models.OrderFee{
			FeeType:      fee.FeeType,
			Value:        fee.Value,
			Description:  fee.Description,
			InternalType: fee.InternalType,
			TaxRate:      decimal.Zero,
			TaxValue:     decimal.Zero,
		}
		if fee.TaxRule != nil {
			rule, ok := cat.taxRules[*fee.TaxRule]
			if !ok {
				return nil, &ValidationError{feeError(len(req.Fees), i, "tax_rule", msgFeeTaxRuleWrongEvent)}
			}
			f.TaxRuleID = &rule.ID
			f.TaxRate = rule.Rate
			f.TaxValue = taxFromInclusive(fee.Value, rule.Rate)
		}
		order.Fees = append(order.Fees, f)
	}

	// Position IDs are either all assigned by the client or all generated.
	manual := 0
	for _, p := range req.Positions {
		if p.PositionID != nil {
			manual++
		}
	}
	if manual > 0 && manual < len(req.Positions) {
		return nil, &ValidationError{response.FieldErrors{"positions": []string{msgManualIDsAllOrNone}}}
	}
	if manual == 0 {
		for _, p := range req.Positions {
			if p.AddonTo != nil {
				return nil, &ValidationError{response.FieldErrors{"positions": []string{msgAddonNeedsManualIDs}}}
			}
		}
	} else {
		for i, p := range req.Positions {
			if *p.PositionID != i+1 {
				return nil, &ValidationError{response.FieldErrors{"positions": []string{msgPositionIDsGapless}}}
			}
		}
		seen := map[int]bool{}
		for _, p := range req.Positions {
			if p.AddonTo != nil && !seen[*p.AddonTo] {
				return nil, &ValidationError{response.FieldErrors{"positions": []string{msgAddonBeforePosition}}}
			}
			seen[*p.PositionID] = true
		}
	}

	n := len(req.Positions)
	for i, p := range req.Positions {
		item, ok := cat.items[p.Item]
		if !ok {
			return nil, &ValidationError{positionError(n, i, "item", msgItemWrongEvent)}
		}
		if !item.Active {
			return nil, &ValidationError{positionError(n, i, "item", msgItemInactive)}
		}

		if event.HasSubevents {
			if p.SubEvent == nil {
				return nil, &ValidationError{positionError(n, i, "subevent", msgSubeventRequired)}
			}
			if !cat.subevents[*p.SubEvent] {
				return nil, &ValidationError{positionError(n, i, "subevent", msgSubeventWrongEvent)}
			}
		} else if p.SubEvent != nil {
			return nil, &ValidationError{positionError(n, i, "subevent", msgSubeventNotAllowed)}
		}

		itemHasVariations := false
		for _, v := range cat.variations {
			if v.ItemID == item.ID {
				itemHasVariations = true
				break
			}
		}
		if p.Variation != nil {
			if !itemHasVariations {
				return nil, &ValidationError{positionError(n, i, "non_field_errors", msgVariationNotAllowed)}
			}
			v, ok := cat.variations[*p.Variation]
			if !ok || v.ItemID != item.ID {
				return nil, &ValidationError{positionError(n, i, "non_field_errors", msgVariationWrongItem)}
			}
		} else if itemHasVariations {
			return nil, &ValidationError{positionError(n, i, "non_field_errors", msgVariationRequired)}
		}

		pos := models.OrderPosition{
			EventID:       event.ID,
			PositionID:    i + 1,
			ItemID:        item.ID,
			VariationID:   p.Variation,
			SubEventID:    p.SubEvent,
			Price:         p.Price,
			AttendeeName:  p.AttendeeName,
			AttendeeEmail: p.AttendeeEmail,
			AddonTo:       p.AddonTo,
			TaxRate:       decimal.Zero,
			TaxValue:      decimal.Zero,
		}
		if p.PositionID != nil {
			pos.PositionID = *p.PositionID
		}
		if p.Secret != nil {
			pos.Secret = *p.Secret
		}
		if item.TaxRuleID != nil {
			if rule, ok := cat.taxRules[*item.TaxRuleID]; ok {
				pos.TaxRuleID = &rule.ID
				pos.TaxRate = rule.Rate
				pos.TaxValue = taxFromInclusive(p.Price, rule.Rate)
			}
		}

		for j, ans := range p.Answers {
			normalized, aerr := NormalizeAnswer(cat.questions[ans.Question], ans)
			if aerr != nil {
				return nil, &ValidationError{answerError(n, i, j, aerr)}
			}
			pos.Answers = append(pos.Answers, normalized)
		}

		order.Positions = append(order.Positions, pos)
	}

	total := decimal.Zero
	for _, p := range order.Positions {
		total = total.Add(p.Price)
	}
	for _, f := range order.Fees {
		total = total.Add(f.Value)
	}
	order.Total = total

	// Free orders complete immediately; paid providers make no sense for them.
	if total.IsZero() {
		order.Status = models.OrderStatusPaid
		order.PaymentProvider = "free"
	} else {
		if req.PaymentProvider == "free" {
			return nil, &RequestError{msgFreeProviderNonFree}
		}
		order.PaymentProvider = req.PaymentProvider
	}
	if len(req.PaymentInfo) > 0 {
		order.PaymentInfo = req.PaymentInfo
	}

	if req.InvoiceAddress != nil {
		order.InvoiceAddress = &models.InvoiceAddress{
			IsBusiness:        req.InvoiceAddress.IsBusiness,
			Company:           req.InvoiceAddress.Company,
			Name:              req.InvoiceAddress.Name,
			Street:            req.InvoiceAddress.Street,
			Zipcode:           req.InvoiceAddress.Zipcode,
			City:              req.InvoiceAddress.City,
			Country:           req.InvoiceAddress.Country,
			InternalReference: req.InvoiceAddress.InternalReference,
			VatID:             req.InvoiceAddress.VatID,
		}
	}

	return order, nil
}

// Create places a new order. The event lock is held across the quota check
// and the commit so concurrent requests cannot oversell.
func (s *CreateService) Create(ctx context.Context, event *models.Event, req *CreateRequest) (*models.Order, error) {
	if req.Code != "" && !ValidCode(req.Code) {
		return nil, &ValidationError{response.FieldErrors{"code": []string{msgCodeInvalid}}}
	}

	lease, err := s.locks.Acquire(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := lease.Release(releaseCtx); rerr != nil {
			s.logger.Warn("event lock release failed", zap.Error(rerr))
		}
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cat, err := loadCatalog(ctx, tx, event.ID)
	if err != nil {
		return nil, err
	}

	order, err := s.validateShape(event, cat, req)
	if err != nil {
		return nil, err
	}

	if err := s.assignCode(ctx, tx, event.ID, order, req.Code); err != nil {
		return nil, err
	}
	if err := s.assignSecrets(ctx, tx, event.ID, order); err != nil {
		return nil, err
	}

	if len(req.ConsumeCarts) > 0 {
		known, err := carts.ByCartIDs(ctx, tx, event.ID, req.ConsumeCarts)
		if err != nil {
			return nil, err
		}
		if len(known) == 0 {
			return nil, &ValidationError{response.FieldErrors{"consume_carts": []string{msgCartUnknown}}}
		}
	}

	if err := s.checkQuotas(ctx, tx, event, cat, order, req.ConsumeCarts); err != nil {
		return nil, err
	}

	if len(req.ConsumeCarts) > 0 {
		if err := carts.DeleteByCartIDs(ctx, tx, event.ID, req.ConsumeCarts); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	order.Datetime = now
	order.Expires = now.AddDate(0, 0, defaultExpiryDays)
	if order.Status == models.OrderStatusPaid {
		order.PaymentDate = &now
	}

	if err := insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	policy := event.Settings.InvoiceGenerate
	if s.invoices != nil &&
		(policy == "create" || (policy == "paid" && order.Status == models.OrderStatusPaid)) {
		if err := s.invoices.IssueForOrder(ctx, tx, event, order); err != nil {
			return nil, fmt.Errorf("issue invoice: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("event", event.Slug),
		zap.String("code", order.Code),
		zap.String("status", order.Status),
		zap.String("total", order.Total.StringFixed(2)),
	)

	if order.Email != nil && s.queue != nil {
		err := s.queue.EnqueueOrderEmail(ctx, queue.OrderEmailPayload{
			EmailType:      "order_placed",
			EventID:        event.ID,
			OrderCode:      order.Code,
			RecipientEmail: *order.Email,
			Locale:         order.Locale,
			Subject:        fmt.Sprintf("Your order: %s", order.Code),
			Body:           fmt.Sprintf("Your order %s has been placed. Total: %s %s.", order.Code, order.Total.StringFixed(2), event.Currency),
		})
		if err != nil {
			s.logger.Warn("order email enqueue failed", zap.String("code", order.Code), zap.Error(err))
		}
	}

	return order, nil
}

func (s *CreateService) assignCode(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, order *models.Order, requested string) error {
	if requested != "" {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE event_id = $1 AND code = $2)`,
			eventID, requested).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return &ValidationError{response.FieldErrors{"code": []string{msgCodeInUse}}}
		}
		order.Code = requested
		return nil
	}
	for {
		code := GenerateCode()
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE event_id = $1 AND code = $2)`,
			eventID, code).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			order.Code = code
			return nil
		}
	}
}

func (s *CreateService) assignSecrets(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, order *models.Order) error {
	order.Secret = GenerateSecret()

	seen := map[string]bool{}
	for i := range order.Positions {
		pos := &order.Positions[i]
		if pos.Secret == "" {
			pos.Secret = GenerateSecret()
		} else {
			var exists bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM order_positions WHERE event_id = $1 AND secret = $2)`,
				eventID, pos.Secret).Scan(&exists)
			if err != nil {
				return err
			}
			if exists || seen[pos.Secret] {
				return &ValidationError{positionError(len(order.Positions), i, "secret", msgSecretExists)}
			}
		}
		seen[pos.Secret] = true
		pos.PseudonymizationID = GeneratePseudonymizationID()
	}
	return nil
}

// checkQuotas verifies every quota touched by the new positions has room,
// ignoring carts that are consumed by this order.
func (s *CreateService) checkQuotas(ctx context.Context, tx pgx.Tx, event *models.Event, cat *catalog, order *models.Order, consumeCarts []string) error {
	// Group demand per subevent since quotas are subevent-scoped.
	type demandKey struct {
		subevent uuid.UUID
		scoped   bool
	}
	demand := map[demandKey]map[uuid.UUID]int{}
	for _, pos := range order.Positions {
		key := demandKey{}
		if pos.SubEventID != nil {
			key = demandKey{subevent: *pos.SubEventID, scoped: true}
		}
		if demand[key] == nil {
			demand[key] = map[uuid.UUID]int{}
		}
		demand[key][pos.ItemID]++
	}

	ignoreCart := ""
	if len(consumeCarts) == 1 {
		ignoreCart = consumeCarts[0]
	}

	now := time.Now()
	for key, items := range demand {
		itemIDs := make([]uuid.UUID, 0, len(items))
		for id := range items {
			itemIDs = append(itemIDs, id)
		}
		var subevent *uuid.UUID
		if key.scoped {
			se := key.subevent
			subevent = &se
		}
		eventQuotas, err := quotas.ForItems(ctx, tx, event.ID, subevent, itemIDs)
		if err != nil {
			return err
		}
		if len(eventQuotas) == 0 {
			continue
		}
		for _, quota := range eventQuotas {
			covered, err := quotas.ItemsOf(ctx, tx, quota.ID)
			if err != nil {
				return err
			}
			needed := 0
			for _, id := range covered {
				needed += items[id]
			}
			if needed == 0 {
				continue
			}
			avail, err := quotaAvailability(ctx, tx, quota, now, quotas.CheckOptions{
				IgnoreCartID:     ignoreCart,
				CountWaitingList: true,
			}, consumeCarts)
			if err != nil {
				return err
			}
			if !avail.Sellable(needed) {
				return &RequestError{ErrQuotaExceeded{QuotaName: quota.Name}.Error()}
			}
		}
	}
	return nil
}

// quotaAvailability handles the multi-cart consume case that the single
// IgnoreCartID option cannot express.
func quotaAvailability(ctx context.Context, tx pgx.Tx, quota models.Quota, now time.Time, opts quotas.CheckOptions, consumeCarts []string) (quotas.Availability, error) {
	if len(consumeCarts) <= 1 {
		return quotas.AvailabilityOf(ctx, tx, quota, now, opts)
	}
	avail, err := quotas.AvailabilityOf(ctx, tx, quota, now, quotas.CheckOptions{CountWaitingList: opts.CountWaitingList})
	if err != nil || avail.Unlimited {
		return avail, err
	}
	var consumed int
	const q = `SELECT count(*)
		FROM cart_positions cp
		JOIN quota_items qi ON qi.item_id = cp.item_id AND qi.quota_id = $1
		WHERE cp.expires > $2
		  AND (cp.subevent_id IS NOT DISTINCT FROM $3)
		  AND cp.cart_id = ANY($4)`
	if err := tx.QueryRow(ctx, q, quota.ID, now, quota.SubEventID, consumeCarts).Scan(&consumed); err != nil {
		return avail, err
	}
	avail.Free += consumed
	return avail, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	const insert = `INSERT INTO orders (event_id, code, status, email, locale, secret, datetime,
		expires, payment_date, payment_provider, payment_info, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, last_modified`
	var info interface{}
	if len(order.PaymentInfo) > 0 {
		info = order.PaymentInfo
	}
	if err := tx.QueryRow(ctx, insert,
		order.EventID, order.Code, order.Status, order.Email, order.Locale, order.Secret,
		order.Datetime, order.Expires, order.PaymentDate, order.PaymentProvider, info, order.Total,
	).Scan(&order.ID, &order.LastModified); err != nil {
		return err
	}
	for i := range order.Positions {
		order.Positions[i].OrderCode = order.Code
	}

	for i := range order.Fees {
		fee := &order.Fees[i]
		fee.OrderID = order.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO order_fees (order_id, fee_type, value, description, internal_type, tax_rate, tax_value, tax_rule_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			order.ID, fee.FeeType, fee.Value, fee.Description, fee.InternalType,
			fee.TaxRate, fee.TaxValue, fee.TaxRuleID,
		).Scan(&fee.ID)
		if err != nil {
			return err
		}
	}

	for i := range order.Positions {
		pos := &order.Positions[i]
		pos.OrderID = order.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO order_positions (order_id, event_id, positionid, item_id, variation_id,
				subevent_id, price, attendee_name, attendee_email, secret, addon_to,
				tax_rate, tax_value, tax_rule_id, pseudonymization_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 RETURNING id`,
			order.ID, pos.EventID, pos.PositionID, pos.ItemID, pos.VariationID,
			pos.SubEventID, pos.Price, pos.AttendeeName, pos.AttendeeEmail, pos.Secret, pos.AddonTo,
			pos.TaxRate, pos.TaxValue, pos.TaxRuleID, pos.PseudonymizationID,
		).Scan(&pos.ID)
		if err != nil {
			return err
		}
		for j := range pos.Answers {
			ans := &pos.Answers[j]
			ans.PositionID = pos.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO answers (position_id, question_id, answer) VALUES ($1, $2, $3) RETURNING id`,
				pos.ID, ans.QuestionID, ans.Answer,
			).Scan(&ans.ID)
			if err != nil {
				return err
			}
			for _, optID := range ans.OptionIDs {
				if _, err := tx.Exec(ctx,
					`INSERT INTO answer_options (answer_id, option_id) VALUES ($1, $2)`, ans.ID, optID); err != nil {
					return err
				}
			}
		}
	}

	if order.InvoiceAddress != nil {
		ia := order.InvoiceAddress
		ia.OrderID = order.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO invoice_addresses (order_id, is_business, company, name, street, zipcode,
				city, country, internal_reference, vat_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING last_modified`,
			order.ID, ia.IsBusiness, ia.Company, ia.Name, ia.Street, ia.Zipcode,
			ia.City, ia.Country, ia.InternalReference, ia.VatID,
		).Scan(&ia.LastModified)
		if err != nil {
			return err
		}
	}
	return nil
}
