// Package admin is the HTTP surface for tenant administrators.
//
// Loading a taxonomy's term list is the schema trigger: every GET of
// /v1/tenants/:tenant/taxonomies/:taxonomy/terms runs CheckSchema before
// returning the live tree. The same path accepts POST for single-term
// insertion, the only structural write outside the reconciler. Write
// endpoints require the configured bearer token.
//
// Routes:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /v1/tenants/:tenant/status
//	POST /v1/tenants/:tenant/provision
//	POST /v1/tenants/:tenant/update
//	GET  /v1/tenants/:tenant/taxonomies/:taxonomy/terms
//	POST /v1/tenants/:tenant/taxonomies/:taxonomy/terms
package admin
