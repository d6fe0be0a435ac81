package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roach88/taxsync/internal/reconcile"
	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
	"github.com/roach88/taxsync/internal/tenant"
)

// Resolver finds tenants. *tenant.Registry implements it.
type Resolver interface {
	Tenant(ctx context.Context, id string) (*tenant.Tenant, error)
	Provision(ctx context.Context, id string) ([]reconcile.Report, error)
	Schema() *taxonomy.Schema
}

var _ Resolver = (*tenant.Registry)(nil)

// Handlers contains the admin HTTP handlers.
type Handlers struct {
	resolver Resolver
	logger   *slog.Logger
	token    string
}

// Option configures Handlers.
type Option func(*Handlers)

// WithLogger sets the base request logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) {
		h.logger = l
	}
}

// WithAdminToken requires token as a bearer token on write endpoints.
// An empty token leaves them open.
func WithAdminToken(token string) Option {
	return func(h *Handlers) {
		h.token = token
	}
}

// NewHandlers creates handlers serving tenants from r.
func NewHandlers(r Resolver, opts ...Option) *Handlers {
	h := &Handlers{
		resolver: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.resolver.Schema().Version,
	})
}

// HandleStatus handles GET /v1/tenants/:tenant/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	st, err := t.Gate.Status(c.Request.Context())
	if err != nil {
		requestLogger(c).Error("status read failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "status unavailable", Code: CodeInternal})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Tenant: t.ID, Status: st})
}

// HandleTerms handles GET /v1/tenants/:tenant/taxonomies/:taxonomy/terms.
//
// This is the admin page load: it runs the schema check, then returns the
// current tree. A failed check is logged and does not fail the page.
func (h *Handlers) HandleTerms(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	tax, ok := h.taxonomy(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := requestLogger(c)

	scheduled, err := t.Gate.CheckSchema(ctx)
	if err != nil {
		logger.Warn("schema check failed", "error", err)
	}

	tree, err := t.Store.Tree(ctx, tax)
	if err != nil {
		logger.Error("tree read failed", "taxonomy", tax, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "terms unavailable", Code: CodeInternal})
		return
	}
	c.JSON(http.StatusOK, TermsResponse{Tree: tree, UpdateScheduled: scheduled})
}

// HandleInsert handles POST /v1/tenants/:tenant/taxonomies/:taxonomy/terms.
//
// Inserts exactly one term. Nothing is written when validation fails.
//
// Response:
//
//	201 Created: InsertResponse
//	400 Bad Request: invalid body, name or parent
//	404 Not Found: unknown tenant or taxonomy
//	409 Conflict: a sibling already has that name
func (h *Handlers) HandleInsert(c *gin.Context) {
	logger := requestLogger(c)

	var req InsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid insert request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return
	}

	t, ok := h.tenant(c)
	if !ok {
		return
	}
	tax, ok := h.taxonomy(c)
	if !ok {
		return
	}

	resp, err := InsertTerm(c.Request.Context(), t.Store, tax, req.Parent, req.Name)
	if err != nil {
		status, code := insertErrorStatus(err)
		logger.Warn("term insert rejected", "taxonomy", tax, "name", req.Name, "parent", req.Parent, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	termsInserted.WithLabelValues(string(tax)).Inc()
	logger.Info("term inserted", "taxonomy", tax, "id", resp.Term.ID, "name", resp.Term.Name, "parent", resp.Term.Parent)
	c.JSON(http.StatusCreated, resp)
}

// HandleProvision handles POST /v1/tenants/:tenant/provision.
func (h *Handlers) HandleProvision(c *gin.Context) {
	id := c.Param("tenant")
	reports, err := h.resolver.Provision(c.Request.Context(), id)
	if err != nil {
		if h.tenantError(c, err) {
			return
		}
		requestLogger(c).Error("provision failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeUpdateFailed})
		return
	}
	c.JSON(http.StatusOK, RunResponse{
		Tenant:  id,
		Version: h.resolver.Schema().Version,
		Reports: reconcile.Summaries(reports),
	})
}

// HandleUpdate handles POST /v1/tenants/:tenant/update, a synchronous
// UpdateSchema for an existing tenant.
func (h *Handlers) HandleUpdate(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	reports, err := t.Gate.UpdateSchema(c.Request.Context())
	if err != nil {
		requestLogger(c).Error("schema update failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeUpdateFailed})
		return
	}
	c.JSON(http.StatusOK, RunResponse{
		Tenant:  t.ID,
		Version: t.Gate.Version(),
		Reports: reconcile.Summaries(reports),
	})
}

// InsertTerm creates one term under parent and works out where it sits among
// its siblings. The write is tagged as an admin insertion, which managed
// taxonomies accept for creation only.
func InsertTerm(ctx context.Context, s *store.Store, tax taxonomy.ID, parent taxonomy.TermID, name string) (InsertResponse, error) {
	term, err := s.CreateTerm(store.WithOrigin(ctx, store.OriginAdminInsert), tax, name, parent)
	if err != nil {
		return InsertResponse{}, err
	}
	if err := s.InvalidateCache(ctx, tax); err != nil {
		return InsertResponse{}, err
	}

	siblings, err := s.ListTerms(ctx, tax, taxonomy.ChildrenOf(parent))
	if err != nil {
		return InsertResponse{}, err
	}
	after := parent
	for _, sib := range siblings {
		if sib.ID == term.ID {
			break
		}
		after = sib.ID
	}
	return InsertResponse{Term: term, InsertAfter: after}, nil
}

func insertErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, store.ErrUnknownParent):
		return http.StatusBadRequest, CodeUnknownParent
	case errors.Is(err, store.ErrDuplicateTerm):
		return http.StatusConflict, CodeDuplicateTerm
	case errors.Is(err, store.ErrUnmanagedWrite):
		return http.StatusForbidden, CodeForbidden
	default:
		return http.StatusInternalServerError, CodeInsertFailed
	}
}

// tenant resolves the :tenant parameter, writing the error response on
// failure.
func (h *Handlers) tenant(c *gin.Context) (*tenant.Tenant, bool) {
	t, err := h.resolver.Tenant(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		if !h.tenantError(c, err) {
			requestLogger(c).Error("tenant open failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "tenant unavailable", Code: CodeInternal})
		}
		return nil, false
	}
	return t, true
}

// tenantError writes the response for registry lookup errors and reports
// whether err was one.
func (h *Handlers) tenantError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, tenant.ErrInvalidTenant):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidTenant})
	case errors.Is(err, tenant.ErrUnknownTenant):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeUnknownTenant})
	default:
		return false
	}
	return true
}

// taxonomy resolves the :taxonomy parameter against the managed schema.
func (h *Handlers) taxonomy(c *gin.Context) (taxonomy.ID, bool) {
	id := taxonomy.ID(c.Param("taxonomy"))
	if _, ok := h.resolver.Schema().Lookup(id); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "taxonomy " + string(id) + " is not managed",
			Code:  CodeUnknownTaxonomy,
		})
		return "", false
	}
	return id, true
}

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "taxsync_logger"
)

// requestLogger returns the request-scoped logger set by the router.
func requestLogger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)
	return requestID
}
