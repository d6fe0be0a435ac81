// Package events subscribes to tenant lifecycle messages on NATS.
//
// A tenant-provisioned message carries {"tenant": "<id>"}. The listener
// provisions the tenant synchronously, so its taxonomies are current before
// any administrator loads them. When the message has a reply subject the
// outcome is sent back as a ProvisionResult.
package events
