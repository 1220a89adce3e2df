// Package ethereum provides the node-backed event log source.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-bridge/business/events/app"
	"github.com/fd1az/dapp-bridge/business/events/domain"
	"github.com/fd1az/dapp-bridge/internal/circuitbreaker"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/dapp-bridge/business/events/infra/ethereum"
	meterName  = "github.com/fd1az/dapp-bridge/business/events/infra/ethereum"

	maxCachedHeaders = 1024
)

// Node is the subset of the node client the log source needs.
// *ethclient.Client satisfies it.
type Node interface {
	ethereum.LogFilterer
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config holds log source settings.
type Config struct {
	HistoryBatchSize  uint64        // blocks per eth_getLogs page
	RequestsPerMinute int           // eth_getLogs budget, 0 = unlimited
	PollInterval      time.Duration // head polling when the node cannot push logs
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryBatchSize: 5000,
		PollInterval:     4 * time.Second,
	}
}

type logSourceMetrics struct {
	logsFetched     metric.Int64Counter
	logsStreamed    metric.Int64Counter
	decodeErrors    metric.Int64Counter
	subscribeErrors metric.Int64Counter
	pollFallback    metric.Int64Counter
}

// LogSource pages history with eth_getLogs and streams live logs through
// eth_subscribe, falling back to head polling over HTTP.
type LogSource struct {
	node    Node
	config  Config
	logger  logger.LoggerInterface
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[[]types.Log]

	headerMu sync.Mutex
	headers  map[uint64]time.Time

	tracer  trace.Tracer
	metrics *logSourceMetrics
}

var _ app.LogSource = (*LogSource)(nil)

// NewLogSource creates a log source over node.
func NewLogSource(node Node, cfg Config, log logger.LoggerInterface) (*LogSource, error) {
	def := DefaultConfig()
	if cfg.HistoryBatchSize == 0 {
		cfg.HistoryBatchSize = def.HistoryBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	s := &LogSource{
		node:    node,
		config:  cfg,
		logger:  log,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		headers: make(map[uint64]time.Time),
		tracer:  otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("eth-logs")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.cb = circuitbreaker.New[[]types.Log](cbCfg)

	return s, nil
}

func (s *LogSource) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &logSourceMetrics{}

	s.metrics.logsFetched, err = meter.Int64Counter(
		"eth_logs_fetched_total",
		metric.WithDescription("Logs returned by eth_getLogs"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return err
	}

	s.metrics.logsStreamed, err = meter.Int64Counter(
		"eth_logs_streamed_total",
		metric.WithDescription("Logs received from the live stream"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return err
	}

	s.metrics.decodeErrors, err = meter.Int64Counter(
		"eth_log_decode_errors_total",
		metric.WithDescription("Logs that could not be decoded"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total log subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.pollFallback, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times head polling replaced a push subscription"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// History pages eth_getLogs from block from to the current head.
func (s *LogSource) History(ctx context.Context, f domain.Filter, from uint64) ([]domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, "eth.logs.history", trace.WithAttributes(
		attribute.String("filter", f.String()),
		attribute.Int64("from_block", int64(from)),
	))
	defer span.End()

	head, err := s.node.BlockNumber(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "head failed")
		return nil, fmt.Errorf("latest block: %w", err)
	}

	logs, err := s.fetchRange(ctx, f, from, head)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	records := s.decodeAll(ctx, f, logs)
	span.SetAttributes(attribute.Int("records", len(records)), attribute.Int64("head", int64(head)))
	span.SetStatus(codes.Ok, "fetched")
	return records, nil
}

// fetchRange pages [from, to] in HistoryBatchSize windows.
func (s *LogSource) fetchRange(ctx context.Context, f domain.Filter, from, to uint64) ([]types.Log, error) {
	var out []types.Log
	for start := from; start <= to; {
		end := start + s.config.HistoryBatchSize - 1
		if end > to || end < start {
			end = to
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		q := f.Query(start, end)
		logs, err := s.cb.Execute(func() ([]types.Log, error) {
			return s.node.FilterLogs(ctx, q)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch logs [%d, %d]: %w", start, end, err)
		}
		s.metrics.logsFetched.Add(ctx, int64(len(logs)))
		out = append(out, logs...)

		if end == to {
			break
		}
		start = end + 1
	}
	return out, nil
}

// Subscribe streams new logs into sink. Nodes without push support are
// polled instead.
func (s *LogSource) Subscribe(ctx context.Context, f domain.Filter, sink chan<- domain.Record) (ethereum.Subscription, error) {
	ctx, span := s.tracer.Start(ctx, "eth.logs.subscribe", trace.WithAttributes(
		attribute.String("filter", f.String()),
	))
	defer span.End()

	raw := make(chan types.Log, 64)
	sub, err := s.node.SubscribeFilterLogs(ctx, f.LiveQuery(), raw)
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		s.metrics.pollFallback.Add(ctx, 1)
		span.AddEvent("poll_fallback")
		return s.poll(ctx, f, sink)
	}
	if err != nil {
		s.metrics.subscribeErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return nil, err
	}

	s.logger.Debug(ctx, "subscribed to logs", "filter", f.String())
	span.SetStatus(codes.Ok, "subscribed")

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case <-quit:
				return nil
			case err := <-sub.Err():
				if err == nil {
					err = errors.New("log subscription closed")
				}
				s.metrics.subscribeErrors.Add(ctx, 1)
				return err
			case l := <-raw:
				s.metrics.logsStreamed.Add(ctx, 1)
				rec, ok := s.decode(ctx, f, l)
				if !ok {
					continue
				}
				select {
				case sink <- rec:
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}

// poll emulates a subscription by following the head.
func (s *LogSource) poll(ctx context.Context, f domain.Filter, sink chan<- domain.Record) (ethereum.Subscription, error) {
	last, err := s.node.BlockNumber(ctx)
	if err != nil {
		s.metrics.subscribeErrors.Add(ctx, 1)
		return nil, fmt.Errorf("latest block: %w", err)
	}

	s.logger.Info(ctx, "node cannot push logs, polling", "filter", f.String(), "interval", s.config.PollInterval)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			head, err := s.node.BlockNumber(ctx)
			if err != nil {
				s.metrics.subscribeErrors.Add(ctx, 1)
				return fmt.Errorf("poll head: %w", err)
			}
			if head <= last {
				continue
			}

			logs, err := s.fetchRange(ctx, f, last+1, head)
			if err != nil {
				s.metrics.subscribeErrors.Add(ctx, 1)
				return err
			}
			last = head

			s.metrics.logsStreamed.Add(ctx, int64(len(logs)))
			for _, rec := range s.decodeAll(ctx, f, logs) {
				select {
				case sink <- rec:
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}

func (s *LogSource) decodeAll(ctx context.Context, f domain.Filter, logs []types.Log) []domain.Record {
	out := make([]domain.Record, 0, len(logs))
	for _, l := range logs {
		if rec, ok := s.decode(ctx, f, l); ok {
			out = append(out, rec)
		}
	}
	return out
}

// decode turns a raw log into a record. Removed logs belong to a reorged
// block and are skipped.
func (s *LogSource) decode(ctx context.Context, f domain.Filter, l types.Log) (domain.Record, bool) {
	if l.Removed {
		return domain.Record{}, false
	}

	ev, args, err := f.Interface.DecodeLog(l)
	if err != nil {
		s.metrics.decodeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "undecodable log", "filter", f.String(), "block", l.BlockNumber, "index", l.Index, "error", err)
		return domain.Record{}, false
	}

	return domain.Record{
		Contract:  f.Contract,
		Topic:     ev.Name,
		Args:      args,
		Block:     l.BlockNumber,
		LogIndex:  l.Index,
		TxHash:    l.TxHash,
		Timestamp: s.blockTime(ctx, l.BlockNumber),
	}, true
}

// blockTime returns the block timestamp, zero if the header is unavailable.
func (s *LogSource) blockTime(ctx context.Context, number uint64) time.Time {
	s.headerMu.Lock()
	ts, ok := s.headers[number]
	s.headerMu.Unlock()
	if ok {
		return ts
	}

	header, err := s.node.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil || header == nil {
		s.logger.Debug(ctx, "block header unavailable", "block", number, "error", err)
		return time.Time{}
	}
	ts = time.Unix(int64(header.Time), 0)

	s.headerMu.Lock()
	if len(s.headers) >= maxCachedHeaders {
		clear(s.headers)
	}
	s.headers[number] = ts
	s.headerMu.Unlock()
	return ts
}
