package admin

import (
	"github.com/roach88/taxsync/internal/reconcile"
	"github.com/roach88/taxsync/internal/schema"
	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidTenant   = "INVALID_TENANT"
	CodeUnknownTenant   = "UNKNOWN_TENANT"
	CodeUnknownTaxonomy = "UNKNOWN_TAXONOMY"
	CodeUnknownParent   = "UNKNOWN_PARENT"
	CodeDuplicateTerm   = "DUPLICATE_TERM"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeInsertFailed    = "INSERT_FAILED"
	CodeUpdateFailed    = "UPDATE_FAILED"
	CodeInternal        = "INTERNAL"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`
}

// InsertRequest is the body of a single-term insertion.
type InsertRequest struct {
	// Parent is the parent term id; 0 inserts at the root.
	Parent taxonomy.TermID `json:"parent" binding:"gte=0"`

	// Name is the new term's name.
	Name string `json:"name" binding:"required,max=200"`
}

// InsertResponse carries the created term and the sibling it should be
// rendered after: the preceding sibling in store order, or the parent when
// the new term sorts first.
type InsertResponse struct {
	Term        taxonomy.Term   `json:"term"`
	InsertAfter taxonomy.TermID `json:"insert_after"`
}

// TermsResponse is the admin view of one taxonomy.
type TermsResponse struct {
	Tree *store.Tree `json:"tree"`

	// UpdateScheduled is true when this request scheduled a schema update.
	UpdateScheduled bool `json:"update_scheduled"`
}

// StatusResponse reports a tenant's schema state.
type StatusResponse struct {
	Tenant string `json:"tenant"`
	schema.Status
}

// RunResponse reports a synchronous schema run.
type RunResponse struct {
	Tenant  string              `json:"tenant"`
	Version string              `json:"version"`
	Reports []reconcile.Summary `json:"reports"`
}
