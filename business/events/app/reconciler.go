package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/business/events/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dapp-bridge/business/events/app"
	meterName  = "github.com/fd1az/dapp-bridge/business/events/app"
)

// Config holds reconciler settings.
type Config struct {
	FromBlock      uint64        // first block of every history fetch
	BufferSize     int           // live records held while history is in flight
	ResubscribeMin time.Duration // first resubscribe delay
	ResubscribeMax time.Duration // resubscribe delay cap
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:     256,
		ResubscribeMin: 500 * time.Millisecond,
		ResubscribeMax: 30 * time.Second,
	}
}

type reconcilerMetrics struct {
	delivered    metric.Int64Counter
	dropped      metric.Int64Counter
	resubscribes metric.Int64Counter
	attached     metric.Int64UpDownCounter
}

type filterKey struct {
	contract string
	topic    string
}

// Reconciler merges a contract's event history with its live log stream so
// each record reaches the consumer once, in (block, logIndex) order.
type Reconciler struct {
	source     LogSource
	config     Config
	normalizer *address.Normalizer
	logger     logger.LoggerInterface

	mu      sync.Mutex
	filters map[filterKey]*FilterHandle

	tracer  trace.Tracer
	metrics *reconcilerMetrics
}

// NewReconciler creates a reconciler reading from source.
func NewReconciler(source LogSource, cfg Config, log logger.LoggerInterface) (*Reconciler, error) {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.ResubscribeMin <= 0 {
		cfg.ResubscribeMin = def.ResubscribeMin
	}
	if cfg.ResubscribeMax < cfg.ResubscribeMin {
		cfg.ResubscribeMax = max(def.ResubscribeMax, cfg.ResubscribeMin)
	}

	r := &Reconciler{
		source:     source,
		config:     cfg,
		normalizer: address.NewNormalizer(log),
		logger:     log,
		filters:    make(map[filterKey]*FilterHandle),
		tracer:     otel.Tracer(tracerName),
	}

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return r, nil
}

func (r *Reconciler) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &reconcilerMetrics{}

	r.metrics.delivered, err = meter.Int64Counter(
		"events_delivered_total",
		metric.WithDescription("Event records delivered to consumers, by phase"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	r.metrics.dropped, err = meter.Int64Counter(
		"events_dropped_total",
		metric.WithDescription("Event records at or behind the cursor"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	r.metrics.resubscribes, err = meter.Int64Counter(
		"events_resubscribes_total",
		metric.WithDescription("Live log resubscribe attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	r.metrics.attached, err = meter.Int64UpDownCounter(
		"events_filters_attached",
		metric.WithDescription("Filters currently subscribed"),
		metric.WithUnit("{filter}"),
	)
	return err
}

// Attach delivers the full history of topic on contract to onEvent, then
// keeps delivering live records. It returns once history has been
// delivered. On failure the filter is left idle and may be attached again.
func (r *Reconciler) Attach(ctx context.Context, contractAddr string, iface *contract.Interface, topic string, onEvent func(domain.Record)) (*FilterHandle, error) {
	ctx, span := r.tracer.Start(ctx, "events.attach", trace.WithAttributes(
		attribute.String("contract", contractAddr),
		attribute.String("topic", topic),
	))
	defer span.End()

	fail := func(err error) (*FilterHandle, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return nil, err
	}

	if iface == nil || onEvent == nil {
		return fail(apperror.New(apperror.CodeInvalidInput, apperror.WithContext("contract interface and callback required")))
	}

	addr := r.normalizer.Normalize(ctx, contractAddr)
	if err := addr.Err(); err != nil {
		return fail(err)
	}

	f := domain.Filter{Contract: addr, Interface: iface, Topic: topic, FromBlock: r.config.FromBlock}
	if _, ok := f.TopicID(); !ok {
		return fail(apperror.New(apperror.CodeUnknownTopic, apperror.WithContext(iface.Name()+"."+topic)))
	}

	key := filterKey{contract: addr.String(), topic: topic}
	runCtx, cancel := context.WithCancel(context.Background())
	h := &FilterHandle{
		filter:  f,
		key:     key,
		onEvent: onEvent,
		state:   domain.FilterIdle,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	if _, ok := r.filters[key]; ok {
		r.mu.Unlock()
		cancel()
		return fail(apperror.New(apperror.CodeInvalidState, apperror.WithContext(f.String()+" already attached")))
	}
	r.filters[key] = h
	r.mu.Unlock()

	h.setState(domain.FilterFetchingHistory)
	ready := make(chan error, 1)
	go r.run(runCtx, h, ready)

	select {
	case err := <-ready:
		if err != nil {
			r.release(h, domain.FilterIdle)
			r.logger.Warn(ctx, "event filter attach failed", "filter", f.String(), "error", err)
			return fail(err)
		}
	case <-ctx.Done():
		r.release(h, domain.FilterIdle)
		return fail(apperror.New(apperror.CodeHistoryFetchFailed, apperror.WithCause(ctx.Err()), apperror.WithContext(f.String())))
	}

	pos, _ := h.Position()
	r.metrics.attached.Add(ctx, 1)
	r.logger.Info(ctx, "event filter attached", "filter", f.String(), "cursor", pos.String())
	span.SetStatus(codes.Ok, "subscribed")
	return h, nil
}

// Detach stops delivery for h and discards its cursor. It does not wait: a
// record admitted just before Detach may still reach the callback. Wait on
// h.Done() before attaching a replacement for the same filter.
func (r *Reconciler) Detach(h *FilterHandle) {
	if h == nil {
		return
	}
	if prev := r.release(h, domain.FilterDetached); prev == domain.FilterSubscribed {
		r.metrics.attached.Add(context.Background(), -1)
		r.logger.Info(context.Background(), "event filter detached", "filter", h.filter.String())
	}
}

// State reports the lifecycle state of the filter for (contract, topic).
func (r *Reconciler) State(contractAddr, topic string) domain.FilterState {
	key := filterKey{contract: address.Normalize(contractAddr).String(), topic: topic}

	r.mu.Lock()
	h, ok := r.filters[key]
	r.mu.Unlock()
	if !ok {
		return domain.FilterIdle
	}
	return h.State()
}

// Attached returns the number of attached filters.
func (r *Reconciler) Attached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.filters)
}

// Close detaches every filter and waits for their goroutines.
func (r *Reconciler) Close() {
	r.mu.Lock()
	handles := make([]*FilterHandle, 0, len(r.filters))
	for _, h := range r.filters {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		r.Detach(h)
		<-h.done
	}
}

// release ends h and forgets it. It returns the state h was in.
func (r *Reconciler) release(h *FilterHandle, to domain.FilterState) domain.FilterState {
	h.cancel()

	h.mu.Lock()
	prev := h.state
	if prev != domain.FilterDetached {
		h.state = to
		h.cursor = domain.Cursor{}
	}
	h.mu.Unlock()

	r.mu.Lock()
	if r.filters[h.key] == h {
		delete(r.filters, h.key)
	}
	r.mu.Unlock()
	return prev
}

// run is the filter's only delivery path.
func (r *Reconciler) run(ctx context.Context, h *FilterHandle, ready chan<- error) {
	defer close(h.done)

	live := make(chan domain.Record, r.config.BufferSize)
	sub, err := r.source.Subscribe(ctx, h.filter, live)
	if err != nil {
		ready <- apperror.New(apperror.CodeEthereumSubscribeFailed, apperror.WithCause(err), apperror.WithContext(h.filter.String()))
		return
	}

	if err := r.catchUp(ctx, h, h.filter.FromBlock, live); err != nil {
		sub.Unsubscribe()
		ready <- err
		return
	}

	if !h.transition(domain.FilterFetchingHistory, domain.FilterSubscribed) {
		sub.Unsubscribe()
		ready <- apperror.New(apperror.CodeFilterDetached, apperror.WithContext(h.filter.String()))
		return
	}
	ready <- nil

	r.stream(ctx, h, sub, live)
}

// catchUp delivers history from block from, then the live records that
// arrived meanwhile.
func (r *Reconciler) catchUp(ctx context.Context, h *FilterHandle, from uint64, live <-chan domain.Record) error {
	ctx, span := r.tracer.Start(ctx, "events.history", trace.WithAttributes(
		attribute.String("filter", h.filter.String()),
		attribute.Int64("from_block", int64(from)),
	))
	defer span.End()

	records, err := r.source.History(ctx, h.filter, from)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history failed")
		return apperror.New(apperror.CodeHistoryFetchFailed, apperror.WithCause(err), apperror.WithContext(h.filter.String()))
	}
	span.SetAttributes(attribute.Int("records", len(records)))

	sortRecords(records)
	for _, rec := range records {
		r.deliver(ctx, h, rec, "history")
	}

	buffered := drain(live)
	sortRecords(buffered)
	for _, rec := range buffered {
		r.deliver(ctx, h, rec, "buffered")
	}
	return nil
}

func (r *Reconciler) stream(ctx context.Context, h *FilterHandle, sub ethereum.Subscription, live chan domain.Record) {
	for {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			return

		case rec := <-live:
			r.deliver(ctx, h, rec, "live")

		case err := <-sub.Err():
			sub.Unsubscribe()
			if ctx.Err() != nil {
				return
			}

			pending := drain(live)
			sortRecords(pending)
			for _, rec := range pending {
				r.deliver(ctx, h, rec, "live")
			}

			r.logger.Warn(ctx, "log subscription dropped, resubscribing",
				"filter", h.filter.String(),
				"error", err)

			var rerr error
			sub, live, rerr = r.resubscribe(ctx, h)
			if rerr != nil {
				return
			}
		}
	}
}

type subscription struct {
	sub  ethereum.Subscription
	live chan domain.Record
}

// resubscribe reopens the live stream and fetches what was missed since the
// cursor, retrying with backoff until it succeeds or ctx ends.
func (r *Reconciler) resubscribe(ctx context.Context, h *FilterHandle) (ethereum.Subscription, chan domain.Record, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.ResubscribeMin
	b.MaxInterval = r.config.ResubscribeMax

	res, err := backoff.Retry(ctx, func() (subscription, error) {
		r.metrics.resubscribes.Add(ctx, 1, metric.WithAttributes(attribute.String("filter", h.filter.String())))

		live := make(chan domain.Record, r.config.BufferSize)
		sub, err := r.source.Subscribe(ctx, h.filter, live)
		if err != nil {
			return subscription{}, err
		}
		if err := r.catchUp(ctx, h, h.resumeBlock(), live); err != nil {
			sub.Unsubscribe()
			return subscription{}, err
		}
		return subscription{sub: sub, live: live}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn(ctx, "resubscribe failed", "filter", h.filter.String(), "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	pos, _ := h.Position()
	r.logger.Info(ctx, "log subscription restored", "filter", h.filter.String(), "cursor", pos.String())
	return res.sub, res.live, nil
}

func (r *Reconciler) deliver(ctx context.Context, h *FilterHandle, rec domain.Record, phase string) {
	if !h.admit(rec.Key()) {
		r.metrics.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
		return
	}
	r.metrics.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
	h.onEvent(rec)
}

func drain(ch <-chan domain.Record) []domain.Record {
	var out []domain.Record
	for {
		select {
		case rec := <-ch:
			out = append(out, rec)
		default:
			return out
		}
	}
}

func sortRecords(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Key().Less(records[j].Key())
	})
}
