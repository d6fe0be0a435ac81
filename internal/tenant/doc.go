// Package tenant manages one term store per tenant.
//
// Every tenant owns a SQLite database under the configured data directory.
// The Registry opens tenants lazily, wires a reconcile.Engine, a
// schema.Gate and a schema.Worker around each store, and runs the workers
// while Start is active. Provision brings a freshly created tenant to the
// current schema synchronously.
package tenant
