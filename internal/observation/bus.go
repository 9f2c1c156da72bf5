// Package observation implements the Observation Bus: in-process pub/sub
// of structured flow events, a bounded recent-event ring, rule-driven
// alerts, an optional append-only persistence sink, and a periodic
// snapshot loop — modeled on the teacher's registry.go subscriber-table
// pattern and telemetry/metrics.go's lazily-initialized OTel instrument
// cache.
package observation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xlog"
)

// Filter narrows which events a subscriber receives. A nil or empty
// FlowType matches every event.
type Filter struct {
	FlowType string
	Severity model.EventSeverity
}

func (f Filter) matches(e model.FlowEvent) bool {
	if f.FlowType != "" && f.FlowType != e.FlowType {
		return false
	}
	if f.Severity != "" && f.Severity != e.Severity {
		return false
	}
	return true
}

// Callback receives published events. Panics inside a Callback are
// recovered at the dispatch boundary and never reach the publisher or
// other subscribers (spec.md §4.A).
type Callback func(model.FlowEvent)

// AlertRule inspects a published event and optionally produces an alert.
type AlertRule func(model.FlowEvent) (model.FlowEvent, bool)

// AlertCallback receives dispatched alerts.
type AlertCallback func(model.FlowEvent)

type subscriber struct {
	id       string
	filter   Filter
	callback Callback
}

// Sink persists events off the publish path. File and Redis-Stream
// implementations are provided in this package; both are optional.
type Sink interface {
	Write(model.FlowEvent) error
	Flush() error
	Close() error
}

// Stats summarizes the bus's current state, returned by Stats().
type Stats struct {
	TotalPublished  uint64                   `json:"total_published"`
	RingSize        int                      `json:"ring_size"`
	RingCapacity    int                      `json:"ring_capacity"`
	SubscriberCount int                      `json:"subscriber_count"`
	AlertCount      int                      `json:"alert_count"`
	ActiveAlerts    int                      `json:"active_alerts"`
	ByFlowType      map[string]uint64        `json:"by_flow_type"`
	BySeverity      map[model.EventSeverity]uint64 `json:"by_severity"`
}

// Bus is the Observation Bus. Zero value is not usable; construct with New.
type Bus struct {
	mu          sync.Mutex
	ring        *eventRing
	subscribers []subscriber
	rules       []AlertRule
	alertCBs    []AlertCallback
	alerts      *eventRing
	ackSet      map[string]bool

	totalPublished uint64
	byFlowType     map[string]uint64
	bySeverity     map[model.EventSeverity]uint64

	sink        Sink
	logger      xlog.Logger
	errLimiter  *rate.Limiter

	tracer trace.Tracer
	meter  metric.Meter

	publishedCounter metric.Int64Counter
	alertCounter     metric.Int64Counter
	durationHist     metric.Float64Histogram

	snapshots   *snapshotRing
	stopCh      chan struct{}
	stoppedCh   chan struct{}
	stopOnce    sync.Once
	snapInterval time.Duration
}

// New constructs a Bus from cfg.Bus. The snapshot loop is not started
// until Run is called.
func New(cfg config.BusConfig, logger xlog.Logger) *Bus {
	if logger == nil {
		logger = xlog.NoOpLogger{}
	}
	b := &Bus{
		ring:        newEventRing(cfg.RingCapacity),
		alerts:      newEventRing(cfg.AlertRingCapacity),
		ackSet:      make(map[string]bool),
		byFlowType:  make(map[string]uint64),
		bySeverity:  make(map[model.EventSeverity]uint64),
		logger:      logger,
		errLimiter:  rate.NewLimiter(rate.Every(time.Second), 5),
		tracer:      otel.Tracer("coordinator/observation"),
		meter:       otel.Meter("coordinator/observation"),
		snapshots:   newSnapshotRing(cfg.SnapshotRing),
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
		snapInterval: time.Duration(cfg.SnapshotInterval) * time.Second,
	}
	b.registerBuiltinRules()
	b.initInstruments()
	return b
}

func (b *Bus) initInstruments() {
	var err error
	b.publishedCounter, err = b.meter.Int64Counter("coordinator.bus.events_published")
	if err != nil {
		b.logger.Warn("bus: failed to create events_published counter", map[string]interface{}{"error": err.Error()})
	}
	b.alertCounter, err = b.meter.Int64Counter("coordinator.bus.alerts_raised")
	if err != nil {
		b.logger.Warn("bus: failed to create alerts_raised counter", map[string]interface{}{"error": err.Error()})
	}
	b.durationHist, err = b.meter.Float64Histogram("coordinator.bus.event_duration_ms")
	if err != nil {
		b.logger.Warn("bus: failed to create event_duration_ms histogram", map[string]interface{}{"error": err.Error()})
	}
}

// SetSink attaches an optional persistence sink. Not safe to call
// concurrently with Publish.
func (b *Bus) SetSink(s Sink) { b.sink = s }

// Publish records the event, fans it out to matching subscribers and
// alert rules, and (if configured) queues it to the sink. It never
// blocks on a subscriber: the lock is released before any callback
// runs (spec.md §4.A).
func (b *Bus) Publish(ctx context.Context, e model.FlowEvent) model.FlowEvent {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, span := b.tracer.Start(ctx, "flow."+e.FlowType)
	span.SetAttributes(
		attribute.String("flow.type", e.FlowType),
		attribute.String("flow.event_name", e.EventName),
		attribute.String("flow.severity", string(e.Severity)),
	)
	defer span.End()

	b.mu.Lock()
	b.ring.push(e)
	b.totalPublished++
	b.byFlowType[e.FlowType]++
	b.bySeverity[e.Severity]++
	subsSnapshot := append([]subscriber(nil), b.subscribers...)
	rulesSnapshot := append([]AlertRule(nil), b.rules...)
	alertCBsSnapshot := append([]AlertCallback(nil), b.alertCBs...)
	b.mu.Unlock()

	if b.publishedCounter != nil {
		b.publishedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("flow_type", e.FlowType)))
	}
	if b.durationHist != nil && e.DurationMS != nil {
		b.durationHist.Record(ctx, *e.DurationMS)
	}

	if b.sink != nil {
		if err := b.sink.Write(e); err != nil && b.errLimiter.Allow() {
			b.logger.Error("bus: sink write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	b.dispatch(e, subsSnapshot)
	b.raiseAlerts(ctx, e, rulesSnapshot, alertCBsSnapshot)

	return e
}

func (b *Bus) dispatch(e model.FlowEvent, subs []subscriber) {
	for _, s := range subs {
		if !s.filter.matches(e) {
			continue
		}
		b.safeInvoke(s.callback, e)
	}
}

func (b *Bus) safeInvoke(cb Callback, e model.FlowEvent) {
	defer func() {
		if r := recover(); r != nil && b.errLimiter.Allow() {
			b.logger.Error("bus: subscriber callback panicked", map[string]interface{}{"recovered": r})
		}
	}()
	cb(e)
}

func (b *Bus) raiseAlerts(ctx context.Context, e model.FlowEvent, rules []AlertRule, cbs []AlertCallback) {
	for _, rule := range rules {
		alert, ok := rule(e)
		if !ok {
			continue
		}
		if alert.EventID == "" {
			alert.EventID = uuid.NewString()
		}
		b.mu.Lock()
		b.alerts.push(alert)
		b.mu.Unlock()
		if b.alertCounter != nil {
			b.alertCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", string(alert.Severity))))
		}
		for _, cb := range cbs {
			b.safeInvokeAlert(cb, alert)
		}
	}
}

func (b *Bus) safeInvokeAlert(cb AlertCallback, e model.FlowEvent) {
	defer func() {
		if r := recover(); r != nil && b.errLimiter.Allow() {
			b.logger.Error("bus: alert callback panicked", map[string]interface{}{"recovered": r})
		}
	}()
	cb(e)
}

// Subscribe registers a callback for events matching filter. Returns the
// subscription id, usable with Unsubscribe.
func (b *Bus) Subscribe(callback Callback, filter Filter) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subscribers = append(b.subscribers, subscriber{id: id, filter: filter, callback: callback})
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered subscriber. No-op if id is unknown.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// AddRule registers an additional alert rule alongside the three built-ins.
func (b *Bus) AddRule(rule AlertRule) {
	b.mu.Lock()
	b.rules = append(b.rules, rule)
	b.mu.Unlock()
}

// OnAlert registers a callback invoked whenever a rule raises an alert.
func (b *Bus) OnAlert(cb AlertCallback) {
	b.mu.Lock()
	b.alertCBs = append(b.alertCBs, cb)
	b.mu.Unlock()
}

// Recent returns up to n most-recent events, newest last, optionally
// filtered by flow_type.
func (b *Bus) Recent(n int, flowType string) []model.FlowEvent {
	b.mu.Lock()
	all := b.ring.ordered()
	b.mu.Unlock()

	filtered := all
	if flowType != "" {
		filtered = filtered[:0]
		for _, e := range all {
			if e.FlowType == flowType {
				filtered = append(filtered, e)
			}
		}
	}
	if n > 0 && len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}

// Since returns every event at or after ts, optionally filtered by flow_type.
func (b *Bus) Since(ts time.Time, flowType string) []model.FlowEvent {
	b.mu.Lock()
	all := b.ring.ordered()
	b.mu.Unlock()

	out := make([]model.FlowEvent, 0, len(all))
	for _, e := range all {
		if e.Timestamp.Before(ts) {
			continue
		}
		if flowType != "" && e.FlowType != flowType {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats reports bus-wide counters, used by the CLI's `stats` command.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	active := 0
	for _, a := range b.alerts.ordered() {
		if !b.ackSet[a.EventID] {
			active++
		}
	}

	byFlowType := make(map[string]uint64, len(b.byFlowType))
	for k, v := range b.byFlowType {
		byFlowType[k] = v
	}
	bySeverity := make(map[model.EventSeverity]uint64, len(b.bySeverity))
	for k, v := range b.bySeverity {
		bySeverity[k] = v
	}

	return Stats{
		TotalPublished:  b.totalPublished,
		RingSize:        b.ring.len(),
		RingCapacity:    b.ring.capacity,
		SubscriberCount: len(b.subscribers),
		AlertCount:      b.alerts.len(),
		ActiveAlerts:    active,
		ByFlowType:      byFlowType,
		BySeverity:      bySeverity,
	}
}

// Alerts returns alerts newest-first, optionally only unacknowledged ones.
func (b *Bus) Alerts(activeOnly bool) []model.FlowEvent {
	b.mu.Lock()
	all := b.alerts.ordered()
	acked := make(map[string]bool, len(b.ackSet))
	for k, v := range b.ackSet {
		acked[k] = v
	}
	b.mu.Unlock()

	out := make([]model.FlowEvent, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		a := all[i]
		a.Acknowledged = acked[a.EventID]
		if activeOnly && a.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	return out
}

// AckAlert marks an alert acknowledged, removing it from the active view
// while keeping it in the bounded history ring (supplemented feature,
// grounded on the original's demo_observation.py ack flow).
func (b *Bus) AckAlert(alertID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.alerts.ordered() {
		if a.EventID == alertID {
			b.ackSet[alertID] = true
			return true
		}
	}
	return false
}
