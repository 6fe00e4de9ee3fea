package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/overdue"
	"github.com/mrlokans/library/internal/services"
)

type CheckoutsController struct {
	checkouts CheckoutService
	overdue   OverdueRunner
}

func NewCheckoutsController(checkouts CheckoutService, runner OverdueRunner) *CheckoutsController {
	return &CheckoutsController{checkouts: checkouts, overdue: runner}
}

// CreateCheckoutRequest is the body of POST /api/checkouts and
// POST /api/checkouts/checkout. UserID defaults to the caller.
type CreateCheckoutRequest struct {
	UserID  *uuid.UUID `json:"user_id"`
	BookID  *uuid.UUID `json:"book_id"`
	ISBN    string     `json:"isbn"`
	DueDate *time.Time `json:"due_date"`
}

// CheckoutActionRequest is the body of return and renew.
type CheckoutActionRequest struct {
	CheckoutID uuid.UUID `json:"checkout_id"`
}

// List handles GET /api/checkouts?user_id=&book_id=&status=&overdue=&limit=&offset=
// Callers without a staff role only ever see their own loans.
func (cc *CheckoutsController) List(c *gin.Context) {
	filter, ok := cc.parseFilter(c)
	if !ok {
		return
	}
	p := principal(c)
	if !p.IsStaff() {
		filter.UserID = &p.UserID
	}
	cc.list(c, filter)
}

// ListForUser handles GET /api/checkouts/user/:user_id.
func (cc *CheckoutsController) ListForUser(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "user_id")
	if !ok {
		return
	}
	if !principal(c).CanAccess(userID) {
		respondForbidden(c)
		return
	}
	filter, ok := cc.parseFilter(c)
	if !ok {
		return
	}
	filter.UserID = &userID
	cc.list(c, filter)
}

func (cc *CheckoutsController) parseFilter(c *gin.Context) (services.CheckoutFilter, bool) {
	var filter services.CheckoutFilter
	var ok bool
	if filter.UserID, ok = parseOptionalUUIDQuery(c, "user_id"); !ok {
		return filter, false
	}
	if filter.BookID, ok = parseOptionalUUIDQuery(c, "book_id"); !ok {
		return filter, false
	}
	if filter.Overdue, ok = parseOptionalBoolQuery(c, "overdue"); !ok {
		return filter, false
	}
	filter.Status = entities.CheckoutStatus(strings.ToUpper(c.Query("status")))
	return filter, true
}

func (cc *CheckoutsController) list(c *gin.Context, filter services.CheckoutFilter) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := cc.checkouts.List(c.Request.Context(), filter, page)
	if err != nil {
		respondServiceError(c, err, "list checkouts")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Create lends a book. Staff may lend to anyone; other callers only to
// themselves.
func (cc *CheckoutsController) Create(c *gin.Context) {
	var req CreateCheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.BookID == nil && strings.TrimSpace(req.ISBN) == "" {
		respondBadRequest(c, "book_id or isbn is required")
		return
	}

	p := principal(c)
	userID := p.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}
	if userID == uuid.Nil {
		respondBadRequest(c, "user_id is required")
		return
	}
	if !p.CanAccess(userID) {
		respondForbidden(c)
		return
	}

	in := services.CreateCheckoutInput{UserID: userID, ISBN: req.ISBN, DueDate: req.DueDate}
	if req.BookID != nil {
		in.BookID = *req.BookID
	}
	checkout, err := cc.checkouts.Create(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err, "create checkout")
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// Return closes a loan. The id comes from the path or the body.
func (cc *CheckoutsController) Return(c *gin.Context) {
	id, ok := cc.authorizeAction(c)
	if !ok {
		return
	}
	checkout, err := cc.checkouts.Return(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "return checkout")
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// Renew extends a loan. The id comes from the path or the body.
func (cc *CheckoutsController) Renew(c *gin.Context) {
	id, ok := cc.authorizeAction(c)
	if !ok {
		return
	}
	checkout, err := cc.checkouts.Renew(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "renew checkout")
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// authorizeAction resolves the target checkout id and checks the caller
// owns it. Loans of other users are reported as missing to non-staff.
func (cc *CheckoutsController) authorizeAction(c *gin.Context) (uuid.UUID, bool) {
	var id uuid.UUID
	if c.Param("id") != "" {
		var ok bool
		if id, ok = parseUUIDParam(c, "id"); !ok {
			return uuid.Nil, false
		}
	} else {
		var req CheckoutActionRequest
		if !bindJSON(c, &req) {
			return uuid.Nil, false
		}
		id = req.CheckoutID
	}
	if id == uuid.Nil {
		respondBadRequest(c, "checkout_id is required")
		return uuid.Nil, false
	}

	p := principal(c)
	if p.IsStaff() {
		return id, true
	}
	checkout, err := cc.checkouts.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "load checkout")
		return uuid.Nil, false
	}
	if checkout.UserID != p.UserID {
		respondServiceError(c, services.ErrCheckoutNotFound, "load checkout")
		return uuid.Nil, false
	}
	return id, true
}

func (cc *CheckoutsController) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	checkout, err := cc.checkouts.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get checkout")
		return
	}
	if !principal(c).CanAccess(checkout.UserID) {
		respondServiceError(c, services.ErrCheckoutNotFound, "get checkout")
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// Overdue lists every active loan past its due date (staff only).
func (cc *CheckoutsController) Overdue(c *gin.Context) {
	rows, err := cc.checkouts.ListOverdue(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "list overdue checkouts")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// NotifyOverdue runs an overdue sweep now and reports what it did.
func (cc *CheckoutsController) NotifyOverdue(c *gin.Context) {
	if cc.overdue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: overdue.ErrNotConfigured.Error()})
		return
	}
	result, err := cc.overdue.Run(c.Request.Context())
	if errors.Is(err, overdue.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	if errors.Is(err, overdue.ErrSweepInProgress) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		respondInternalError(c, err, "overdue sweep")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Failures lists recorded overdue email failures (staff only).
func (cc *CheckoutsController) Failures(c *gin.Context) {
	checkoutID, ok := parseOptionalUUIDQuery(c, "checkout_id")
	if !ok {
		return
	}
	page, ok := parsePage(c)
	if !ok {
		return
	}
	result, err := cc.checkouts.ListOverdueEmailFailures(c.Request.Context(), checkoutID, page)
	if err != nil {
		respondServiceError(c, err, "list overdue email failures")
		return
	}
	c.JSON(http.StatusOK, result)
}
