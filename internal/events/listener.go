package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/taxsync/internal/reconcile"
)

// DefaultTimeout bounds one provisioning run.
const DefaultTimeout = 2 * time.Minute

var provisionEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "taxsync",
		Subsystem: "events",
		Name:      "provision_total",
		Help:      "Tenant-provisioned messages by result",
	},
	[]string{"result"},
)

// ErrMissingTenant is returned for messages that name no tenant.
var ErrMissingTenant = errors.New("provision event: tenant is required")

// Provisioner brings a tenant to the current schema.
// *tenant.Registry implements it.
type Provisioner interface {
	Provision(ctx context.Context, id string) ([]reconcile.Report, error)
}

// ProvisionEvent is the payload of a tenant-provisioned message.
type ProvisionEvent struct {
	Tenant string `json:"tenant"`
}

// ProvisionResult is the reply to a provisioning request.
type ProvisionResult struct {
	Tenant  string              `json:"tenant"`
	OK      bool                `json:"ok"`
	Error   string              `json:"error,omitempty"`
	Reports []reconcile.Summary `json:"reports,omitempty"`
}

// ProvisionListener handles tenant-provisioned messages.
type ProvisionListener struct {
	provisioner Provisioner
	logger      *slog.Logger
	timeout     time.Duration
	respond     func(msg *nats.Msg, data []byte) error
}

// Option configures a ProvisionListener.
type Option func(*ProvisionListener)

// WithLogger sets the listener's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(pl *ProvisionListener) {
		pl.logger = l
	}
}

// WithTimeout bounds each provisioning run. Default: DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(pl *ProvisionListener) {
		pl.timeout = d
	}
}

// NewProvisionListener creates a listener that provisions through p.
func NewProvisionListener(p Provisioner, opts ...Option) *ProvisionListener {
	pl := &ProvisionListener{
		provisioner: p,
		logger:      slog.Default(),
		timeout:     DefaultTimeout,
		respond:     (*nats.Msg).Respond,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Subscribe registers the listener on subject.
func (pl *ProvisionListener) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(subject, pl.Handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	pl.logger.Info("listening for provisioning events", "subject", subject)
	return sub, nil
}

// Handle processes one message. It is a nats.MsgHandler.
func (pl *ProvisionListener) Handle(msg *nats.Msg) {
	result := pl.process(msg.Data)
	if result.OK {
		provisionEvents.WithLabelValues("success").Inc()
	} else {
		provisionEvents.WithLabelValues("failure").Inc()
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		pl.logger.Error("encode provision reply", "error", err)
		return
	}
	if err := pl.respond(msg, data); err != nil {
		pl.logger.Warn("provision reply failed", "reply", msg.Reply, "error", err)
	}
}

func (pl *ProvisionListener) process(data []byte) ProvisionResult {
	var ev ProvisionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		pl.logger.Warn("malformed provision event", "error", err)
		return ProvisionResult{Error: fmt.Sprintf("decode provision event: %v", err)}
	}
	if ev.Tenant == "" {
		pl.logger.Warn("provision event without tenant")
		return ProvisionResult{Error: ErrMissingTenant.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), pl.timeout)
	defer cancel()

	reports, err := pl.provisioner.Provision(ctx, ev.Tenant)
	result := ProvisionResult{
		Tenant:  ev.Tenant,
		Reports: reconcile.Summaries(reports),
	}
	if err != nil {
		pl.logger.Error("provisioning failed", "tenant", ev.Tenant, "error", err)
		result.Error = err.Error()
		return result
	}
	result.OK = true
	return result
}
