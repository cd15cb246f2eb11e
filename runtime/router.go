package runtime

import (
	"context"
	"log/slog"
	"time"

	"syncx/contract"
	"syncx/domain/event"
	"syncx/observability"
)

// Router delivers events to the live connections of a set of users.
// Delivery is best effort: offline users are skipped and a connection that
// cannot take the event drops it. Nothing is queued or retried.
type Router struct {
	log         *slog.Logger
	registry    contract.IRegistry
	metrics     *observability.Metrics
	sinkTimeout time.Duration
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics, sinkTimeout time.Duration) *Router {
	return &Router{log: log, registry: registry, metrics: metrics, sinkTimeout: sinkTimeout}
}

func (r *Router) Emit(ctx context.Context, kind event.Kind, targets []string, data any) event.Delivery {
	return r.deliver(ctx, r.registry.ConnectionsFor(targets...), nil, event.Event{Kind: kind, Data: data})
}

// EmitFrom is Emit without the origin connection, used to echo typing
// signals to everyone but the typist.
func (r *Router) EmitFrom(ctx context.Context, origin contract.Connection, kind event.Kind, targets []string, data any) event.Delivery {
	return r.deliver(ctx, r.registry.ConnectionsFor(targets...), origin, event.Event{Kind: kind, Data: data})
}

func (r *Router) Broadcast(ctx context.Context, kind event.Kind, data any) event.Delivery {
	return r.deliver(ctx, r.registry.Connections(), nil, event.Event{Kind: kind, Data: data})
}

// Reply answers a single connection.
func (r *Router) Reply(ctx context.Context, conn contract.Connection, kind event.Kind, data any) event.Delivery {
	return r.deliver(ctx, []contract.Connection{conn}, nil, event.Event{Kind: kind, Data: data})
}

func (r *Router) deliver(ctx context.Context, conns []contract.Connection, origin contract.Connection, e event.Event) event.Delivery {
	var d event.Delivery
	for _, conn := range conns {
		if origin != nil && conn.ID() == origin.ID() {
			continue
		}
		d.Targets++
		if err := r.consume(ctx, conn, e); err != nil {
			d.Dropped++
			r.log.Debug("Event dropped", "event", e.Kind, "connection", conn.ID(), "error", err)
			continue
		}
		d.Delivered++
	}
	r.metrics.AddDelivered(d.Delivered)
	r.metrics.AddDropped(d.Dropped)
	return d
}

func (r *Router) consume(ctx context.Context, conn contract.Connection, e event.Event) error {
	if r.sinkTimeout <= 0 {
		return conn.Consume(ctx, e)
	}
	ctx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
	defer cancel()
	return conn.Consume(ctx, e)
}
