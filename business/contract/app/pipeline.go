package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	walletapp "github.com/fd1az/dapp-bridge/business/wallet/app"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

// PipelineConfig bounds confirmation tracking.
type PipelineConfig struct {
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ConfirmationTimeout: 3 * time.Minute,
		PollInterval:        2 * time.Second,
	}
}

type pipelineMetrics struct {
	submitted    metric.Int64Counter
	resolved     metric.Int64Counter
	inFlight     metric.Int64UpDownCounter
	confirmation metric.Float64Histogram
}

// Pipeline submits state-changing calls and tracks them to a terminal state.
// It never resubmits.
type Pipeline struct {
	config  PipelineConfig
	conns   Connections
	journal Journal
	logger  logger.LoggerInterface

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	listeners []func(*PendingTransaction)

	tracer  trace.Tracer
	metrics *pipelineMetrics
}

// NewPipeline creates a pipeline. journal may be nil.
func NewPipeline(cfg PipelineConfig, conns Connections, journal Journal, log logger.LoggerInterface) (*Pipeline, error) {
	def := DefaultPipelineConfig()
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = def.ConfirmationTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		config:  cfg,
		conns:   conns,
		journal: journal,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		tracer:  otel.Tracer(tracerName),
	}

	if err := p.initMetrics(); err != nil {
		cancel()
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return p, nil
}

func (p *Pipeline) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &pipelineMetrics{}

	p.metrics.submitted, err = meter.Int64Counter(
		"tx_submitted_total",
		metric.WithDescription("Transactions accepted by the network"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	p.metrics.resolved, err = meter.Int64Counter(
		"tx_resolved_total",
		metric.WithDescription("Transactions reaching a terminal state, by state"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	p.metrics.inFlight, err = meter.Int64UpDownCounter(
		"tx_in_flight",
		metric.WithDescription("Transactions awaiting confirmation"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	p.metrics.confirmation, err = meter.Float64Histogram(
		"tx_confirmation_seconds",
		metric.WithDescription("Time from submission to a terminal state"),
		metric.WithUnit("s"),
	)
	return err
}

// OnResolved registers fn for every terminal transition.
func (p *Pipeline) OnResolved(fn func(*PendingTransaction)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Submit sends method on a writable proxy and returns once the network has
// accepted it. Confirmation is tracked in the background.
func (p *Pipeline) Submit(ctx context.Context, proxy *Proxy, method string, args ...any) (*PendingTransaction, error) {
	ctx, span := p.tracer.Start(ctx, "contract.submit", trace.WithAttributes(
		attribute.String("contract", proxy.Address().String()),
		attribute.String("method", method),
	))
	defer span.End()

	fail := func(err error) (*PendingTransaction, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return nil, err
	}

	if proxy.Mode() != domain.Writable {
		return fail(apperror.New(apperror.CodeInvalidBindingMode,
			apperror.WithContext(fmt.Sprintf("submit %s on a %s proxy", method, proxy.Mode()))))
	}

	data, err := proxy.pack(method, args)
	if err != nil {
		return fail(err)
	}

	conn, err := proxy.writeConnection()
	if err != nil {
		return fail(err)
	}

	hash, err := conn.SendTransaction(ctx, walletapp.CallRequest{To: proxy.Address().Common(), Data: data})
	if err != nil {
		err = submitError(err, fmt.Sprintf("%s.%s", proxy.Interface().Name(), method))
		p.logger.Warn(ctx, "transaction not submitted",
			"contract", proxy.Address().String(),
			"method", method,
			"error", err,
			"outcome", apperror.Classify(err).String())
		return fail(err)
	}

	tx := newPendingTransaction(hash, proxy.Address(), method, conn.From(), data, time.Now())
	span.SetAttributes(attribute.String("tx.hash", hash.Hex()))

	p.metrics.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	p.metrics.inFlight.Add(ctx, 1)
	p.logger.Info(ctx, "transaction submitted",
		"hash", hash.Hex(),
		"contract", proxy.Address().String(),
		"method", method,
		"from", conn.From().Hex())

	if p.journal != nil {
		if err := p.journal.Submitted(ctx, tx); err != nil {
			p.logger.Error(ctx, "journal write failed", "hash", hash.Hex(), "error", err)
		}
	}

	p.wg.Add(1)
	go p.track(tx, conn)

	return tx, nil
}

// submitError classifies a failed submission. Rejections and failures to
// reach the wallet mean nothing was sent. Once the request was written, a lost
// answer may hide a broadcast transaction.
func submitError(err error, what string) error {
	switch {
	case apperror.HasCode(err, apperror.CodeUserRejected),
		apperror.HasCode(err, apperror.CodeNotConnected),
		apperror.HasCode(err, apperror.CodeProviderUnavailable),
		apperror.HasCode(err, apperror.CodeWalletUnreachable):
		return err
	case apperror.HasCode(err, apperror.CodeWalletDisconnected),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return unresolvedSubmit(err, what)
	}

	payload := apperror.PayloadOf(err)
	rev, reverted := revertFrom(err)
	if reverted {
		payload = rev
	}
	if !reverted && !apperror.IsAppError(err) {
		return unresolvedSubmit(err, what)
	}
	if payload == nil {
		payload = err.Error()
	}
	return apperror.New(apperror.CodeRemoteFailed,
		apperror.WithCause(err),
		apperror.WithPayload(payload),
		apperror.WithContext(what))
}

func unresolvedSubmit(err error, what string) error {
	return apperror.New(apperror.CodeSubmitUnresolved,
		apperror.WithCause(err),
		apperror.WithContext(what+": wallet answer lost; the transaction may have been broadcast"))
}

// track polls for the receipt until the confirmation deadline.
func (p *Pipeline) track(tx *PendingTransaction, read walletapp.ReadConnection) {
	defer p.wg.Done()

	deadline := tx.SubmittedAt().Add(p.config.ConfirmationTimeout)
	ctx, cancel := context.WithDeadline(p.ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := read.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil && receipt != nil:
			p.settle(tx, read, receipt)
			return
		case err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil:
			p.logger.Debug(ctx, "receipt poll failed", "hash", tx.Hash().Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			if p.ctx.Err() != nil {
				return
			}
			p.timeout(tx)
			return
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) settle(tx *PendingTransaction, read walletapp.ReadConnection, receipt *types.Receipt) {
	if receipt.Status == types.ReceiptStatusSuccessful {
		p.finish(tx, domain.TxConfirmed, receipt, nil)
		return
	}

	rev := &Revert{Receipt: receipt}
	if reason, ok := p.replay(tx, read, receipt); ok {
		rev.Reason = reason.Reason
		rev.Data = reason.Data
	}
	err := apperror.New(apperror.CodeRemoteFailed,
		apperror.WithPayload(rev),
		apperror.WithContext(fmt.Sprintf("%s reverted in block %s", tx.Method(), receipt.BlockNumber)))
	p.finish(tx, domain.TxFailed, receipt, err)
}

// replay re-executes a reverted call at its block to recover the reason.
func (p *Pipeline) replay(tx *PendingTransaction, read walletapp.ReadConnection, receipt *types.Receipt) (*Revert, bool) {
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	to := tx.Contract().Common()
	_, err := read.CallContract(ctx, ethereum.CallMsg{From: tx.From(), To: &to, Data: tx.data}, receipt.BlockNumber)
	return revertFrom(err)
}

func (p *Pipeline) timeout(tx *PendingTransaction) {
	err := apperror.New(apperror.CodeConfirmationTimeout,
		apperror.WithContext(fmt.Sprintf("%s not confirmed within %s", tx.Hash().Hex(), p.config.ConfirmationTimeout)))
	p.finish(tx, domain.TxTimedOut, nil, err)
}

func (p *Pipeline) finish(tx *PendingTransaction, state domain.TxState, receipt *types.Receipt, err error) {
	if !tx.resolve(state, receipt, err, time.Now()) {
		return
	}

	ctx := context.Background()
	p.metrics.inFlight.Add(ctx, -1)
	p.metrics.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
	p.metrics.confirmation.Record(ctx, tx.ResolvedAt().Sub(tx.SubmittedAt()).Seconds(),
		metric.WithAttributes(attribute.String("state", string(state))))

	switch state {
	case domain.TxConfirmed:
		p.logger.Info(ctx, "transaction confirmed", "hash", tx.Hash().Hex(), "block", blockOf(receipt))
	case domain.TxTimedOut:
		p.logger.Warn(ctx, "transaction unresolved", "hash", tx.Hash().Hex(), "error", err)
	default:
		p.logger.Error(ctx, "transaction failed", "hash", tx.Hash().Hex(), "error", err)
	}

	if p.journal != nil {
		if jerr := p.journal.Resolved(ctx, tx); jerr != nil {
			p.logger.Error(ctx, "journal write failed", "hash", tx.Hash().Hex(), "error", jerr)
		}
	}

	p.mu.RLock()
	listeners := append([]func(*PendingTransaction){}, p.listeners...)
	p.mu.RUnlock()
	for _, fn := range listeners {
		fn(tx)
	}
}

// Lookup reports the journaled state of hash. Unresolved entries are
// re-queried against the node and updated when a receipt now exists.
func (p *Pipeline) Lookup(ctx context.Context, hash common.Hash) (domain.TxSummary, error) {
	summary, found := domain.TxSummary{Hash: hash}, false
	if p.journal != nil {
		var err error
		summary, found, err = p.journal.Find(ctx, hash)
		if err != nil {
			return domain.TxSummary{}, apperror.New(apperror.CodeStorageError, apperror.WithCause(err))
		}
		if found && (summary.State == domain.TxConfirmed || summary.State == domain.TxFailed) {
			return summary, nil
		}
	}

	read, err := p.conns.ReadConnection()
	if err != nil {
		return domain.TxSummary{}, err
	}

	receipt, err := read.TransactionReceipt(ctx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		if !found {
			return domain.TxSummary{}, apperror.New(apperror.CodeNotFound, apperror.WithContext(hash.Hex()))
		}
		return summary, nil
	case err != nil:
		return domain.TxSummary{}, remoteFailed(err, "eth_getTransactionReceipt")
	}

	summary.Hash = hash
	summary.BlockNumber = blockOf(receipt)
	now := time.Now()
	summary.ResolvedAt = &now
	if receipt.Status == types.ReceiptStatusSuccessful {
		summary.State = domain.TxConfirmed
		summary.Error = ""
	} else {
		summary.State = domain.TxFailed
		summary.Error = "reverted"
	}

	if found && p.journal != nil {
		if err := p.journal.Update(ctx, summary); err != nil {
			p.logger.Error(ctx, "journal write failed", "hash", hash.Hex(), "error", err)
		}
	}
	return summary, nil
}

// Close stops tracking. Transactions still pending stay Submitted.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}

func blockOf(receipt *types.Receipt) uint64 {
	if receipt == nil || receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
