package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/access"
	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/internal/permission"
	"github.com/ticketline/backend/pkg/response"
)

// Handler exposes the event resource.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func parseBoolParam(c *gin.Context, name string) (*bool, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, false
	}
	return &b, true
}

// List handles GET /organizers/:organizer/events.
func (h *Handler) List(c *gin.Context) {
	org := access.GetOrganizer(c)

	var f ListFilter
	var ok bool
	if f.Live, ok = parseBoolParam(c, "live"); !ok {
		response.BadRequest(c, "invalid value for 'live'")
		return
	}
	if f.IsPublic, ok = parseBoolParam(c, "is_public"); !ok {
		response.BadRequest(c, "invalid value for 'is_public'")
		return
	}
	if f.HasSubevents, ok = parseBoolParam(c, "has_subevents"); !ok {
		response.BadRequest(c, "invalid value for 'has_subevents'")
		return
	}
	if v := c.Query("currency"); v != "" {
		f.Currency = &v
	}
	if v := c.Query("currency__in"); v != "" {
		f.CurrencyIn = strings.Split(v, ",")
	}
	f.Search = c.Query("search")
	if v := c.Query("modified_since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid value for 'modified_since'")
			return
		}
		f.ModifiedSince = &t
	}

	events, err := h.repo.List(c.Request.Context(), org.ID, f)
	if err != nil {
		h.logger.Error("list events failed", zap.String("organizer", org.Slug), zap.Error(err))
		response.Internal(c, "could not list events")
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	response.OK(c, events)
}

// Retrieve handles GET /organizers/:organizer/events/:event. Reading the
// full settings payload needs the same capability as changing it.
func (h *Handler) Retrieve(c *gin.Context) {
	if !access.GetPermissionSet(c).Has(permission.CanChangeEventSettings) {
		response.Forbidden(c, "permission denied")
		return
	}
	response.OK(c, access.GetEvent(c))
}

// Create handles POST /organizers/:organizer/events.
func (h *Handler) Create(c *gin.Context) {
	org := access.GetOrganizer(c)
	if !access.GetPermissionSet(c).Has(permission.CanCreateEvents) {
		response.Forbidden(c, "permission denied")
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if req.Slug == nil {
		response.ValidationFailed(c, response.FieldErrors{"slug": []string{"This field is required."}})
		return
	}
	if errs := validateSlug(*req.Slug); errs != nil {
		response.ValidationFailed(c, errs)
		return
	}
	if req.Live != nil && *req.Live {
		response.ValidationFailed(c, response.FieldErrors{"live": []string{msgCreatedLive}})
		return
	}
	if errs := validateDates(req.DateFrom, req.DateTo, req.PresaleStart, req.PresaleEnd); errs != nil {
		response.ValidationFailed(c, errs)
		return
	}

	e := models.Event{
		OrganizerID:   org.ID,
		Slug:          *req.Slug,
		Name:          req.Name,
		Currency:      "EUR",
		DateFrom:      req.DateFrom,
		DateTo:        req.DateTo,
		DateAdmission: req.DateAdmission,
		PresaleStart:  req.PresaleStart,
		PresaleEnd:    req.PresaleEnd,
		Location:      req.Location,
		Plugins:       []string{},
		MetaData:      models.LocalizedString{},
	}
	if e.Name == nil {
		e.Name = models.LocalizedString{}
	}
	if req.Currency != nil {
		e.Currency = *req.Currency
	}
	if req.IsPublic != nil {
		e.IsPublic = *req.IsPublic
	}
	if req.HasSubevents != nil {
		e.HasSubevents = *req.HasSubevents
	}
	if req.MetaData != nil {
		e.MetaData = req.MetaData
	}
	if req.Plugins != nil {
		if errs := validatePlugins(*req.Plugins); errs != nil {
			response.ValidationFailed(c, errs)
			return
		}
		e.Plugins = *req.Plugins
	}

	taken, err := h.repo.SlugExists(c.Request.Context(), org.ID, e.Slug)
	if err != nil {
		h.logger.Error("slug lookup failed", zap.Error(err))
		response.Internal(c, "could not create event")
		return
	}
	if taken {
		response.ValidationFailed(c, response.FieldErrors{"slug": []string{msgSlugTaken}})
		return
	}

	if err := h.repo.Create(c.Request.Context(), &e); err != nil {
		h.logger.Error("create event failed", zap.String("slug", e.Slug), zap.Error(err))
		response.Internal(c, "could not create event")
		return
	}
	h.logger.Info("event created", zap.String("organizer", org.Slug), zap.String("slug", e.Slug))
	response.Created(c, e)
}

// Update handles PATCH /organizers/:organizer/events/:event.
func (h *Handler) Update(c *gin.Context) {
	e := access.GetEvent(c)
	if !access.GetPermissionSet(c).Has(permission.CanChangeEventSettings) {
		response.Forbidden(c, "permission denied")
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.Slug != nil && *req.Slug != e.Slug {
		response.ValidationFailed(c, response.FieldErrors{"slug": []string{msgSlugImmutable}})
		return
	}

	updated := *e
	if req.Name != nil {
		updated.Name = req.Name
	}
	if req.Currency != nil {
		updated.Currency = *req.Currency
	}
	if req.DateFrom != nil {
		updated.DateFrom = req.DateFrom
	}
	if req.DateTo != nil {
		updated.DateTo = req.DateTo
	}
	if req.DateAdmission != nil {
		updated.DateAdmission = req.DateAdmission
	}
	if req.PresaleStart != nil {
		updated.PresaleStart = req.PresaleStart
	}
	if req.PresaleEnd != nil {
		updated.PresaleEnd = req.PresaleEnd
	}
	if req.IsPublic != nil {
		updated.IsPublic = *req.IsPublic
	}
	if req.Location != nil {
		updated.Location = req.Location
	}
	if req.HasSubevents != nil {
		updated.HasSubevents = *req.HasSubevents
	}
	if req.MetaData != nil {
		updated.MetaData = req.MetaData
	}
	if req.Plugins != nil {
		if errs := validatePlugins(*req.Plugins); errs != nil {
			response.ValidationFailed(c, errs)
			return
		}
		updated.Plugins = *req.Plugins
	}

	if errs := validateDates(updated.DateFrom, updated.DateTo, updated.PresaleStart, updated.PresaleEnd); errs != nil {
		response.ValidationFailed(c, errs)
		return
	}

	if req.Live != nil && *req.Live && !e.Live {
		readiness, err := h.repo.LiveReadiness(c.Request.Context(), e)
		if err != nil {
			h.logger.Error("live readiness check failed", zap.Error(err))
			response.Internal(c, "could not update event")
			return
		}
		if errs := validateLive(readiness); errs != nil {
			response.ValidationFailed(c, errs)
			return
		}
	}
	if req.Live != nil {
		updated.Live = *req.Live
	}

	if err := h.repo.Update(c.Request.Context(), &updated); err != nil {
		h.logger.Error("update event failed", zap.String("slug", e.Slug), zap.Error(err))
		response.Internal(c, "could not update event")
		return
	}
	response.OK(c, updated)
}

// Destroy handles DELETE /organizers/:organizer/events/:event. Events with
// order or cart positions cannot be deleted.
func (h *Handler) Destroy(c *gin.Context) {
	e := access.GetEvent(c)
	if !access.GetPermissionSet(c).Has(permission.CanCreateEvents) {
		response.Forbidden(c, "permission denied")
		return
	}

	hasSales, err := h.repo.HasSales(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("delete guard failed", zap.Error(err))
		response.Internal(c, "could not delete event")
		return
	}
	if hasSales {
		response.Forbidden(c, "The event cannot be deleted as it already contains orders or cart positions.")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), e.ID); err != nil {
		h.logger.Error("delete event failed", zap.String("slug", e.Slug), zap.Error(err))
		response.Internal(c, "could not delete event")
		return
	}
	h.logger.Info("event deleted", zap.String("slug", e.Slug))
	response.NoContent(c)
}

// Clone handles POST /organizers/:organizer/events/:event/clone. The new
// event copies settings, plugins, tax rules, items, quotas and questions
// from the source event and is never live.
func (h *Handler) Clone(c *gin.Context) {
	org := access.GetOrganizer(c)
	src := access.GetEvent(c)
	if !access.GetPermissionSet(c).Has(permission.CanCreateEvents) {
		response.Forbidden(c, "permission denied")
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.Slug == nil {
		response.ValidationFailed(c, response.FieldErrors{"slug": []string{"This field is required."}})
		return
	}
	if errs := validateSlug(*req.Slug); errs != nil {
		response.ValidationFailed(c, errs)
		return
	}
	if errs := validateDates(req.DateFrom, req.DateTo, req.PresaleStart, req.PresaleEnd); errs != nil {
		response.ValidationFailed(c, errs)
		return
	}

	taken, err := h.repo.SlugExists(c.Request.Context(), org.ID, *req.Slug)
	if err != nil {
		h.logger.Error("slug lookup failed", zap.Error(err))
		response.Internal(c, "could not clone event")
		return
	}
	if taken {
		response.ValidationFailed(c, response.FieldErrors{"slug": []string{msgSlugTaken}})
		return
	}

	e := models.Event{
		OrganizerID:   org.ID,
		Slug:          *req.Slug,
		Name:          src.Name,
		Currency:      src.Currency,
		DateFrom:      req.DateFrom,
		DateTo:        req.DateTo,
		DateAdmission: req.DateAdmission,
		PresaleStart:  req.PresaleStart,
		PresaleEnd:    req.PresaleEnd,
		IsPublic:      src.IsPublic,
		Location:      src.Location,
		HasSubevents:  src.HasSubevents,
		Plugins:       src.Plugins,
		MetaData:      src.MetaData,
		Settings:      src.Settings,
	}
	if req.Name != nil {
		e.Name = req.Name
	}
	if req.Currency != nil {
		e.Currency = *req.Currency
	}
	if req.IsPublic != nil {
		e.IsPublic = *req.IsPublic
	}
	if req.Location != nil {
		e.Location = req.Location
	}
	if req.HasSubevents != nil {
		e.HasSubevents = *req.HasSubevents
	}
	if req.MetaData != nil {
		e.MetaData = req.MetaData
	}
	if req.Plugins != nil {
		if errs := validatePlugins(*req.Plugins); errs != nil {
			response.ValidationFailed(c, errs)
			return
		}
		e.Plugins = *req.Plugins
	}

	if err := h.repo.Clone(c.Request.Context(), src.ID, &e); err != nil {
		h.logger.Error("clone event failed", zap.String("source", src.Slug), zap.Error(err))
		response.Internal(c, "could not clone event")
		return
	}
	h.logger.Info("event cloned", zap.String("source", src.Slug), zap.String("slug", e.Slug))
	response.Created(c, e)
}
