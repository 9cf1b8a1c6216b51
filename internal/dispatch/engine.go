package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"io.winapps.pushcast/internal/gateway"
	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

// Config carries the dispatch tunables. Zero values fall back to the defaults
// documented on each field.
type Config struct {
	BatchSize    int           // endpoints per batch, default 100
	Concurrency  int           // concurrent batch workers, default 10
	MaxRetries   int           // extra attempts after a transient failure, default 2
	RetryBackoff time.Duration // first backoff, doubles per attempt, default 200ms
	Timeout      time.Duration // global bound on one broadcast, default 120s
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:    100,
		Concurrency:  10,
		MaxRetries:   2,
		RetryBackoff: 200 * time.Millisecond,
		Timeout:      120 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Invalidator removes permanently undeliverable endpoints from the registry.
type Invalidator interface {
	Invalidate(ctx context.Context, token string) error
}

// LedgerSink persists the broadcast record and its counter deltas.
type LedgerSink interface {
	Create(ctx context.Context, req broadcastmodels.NotificationRequest, target broadcastmodels.TargetSpec, total int) (broadcastmodels.DeliveryRecord, error)
	ApplyDelta(ctx context.Context, id string, successDelta, failureDelta int) error
}

// Result is the aggregate outcome of one broadcast. Sent == Success + Failed.
type Result struct {
	Sent    int `json:"sent"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Engine fans one notification out to a set of endpoints with bounded
// concurrency and reports per-endpoint outcomes into the ledger.
type Engine struct {
	cfg         Config
	gateway     gateway.PushGateway
	invalidator Invalidator
	ledger      LedgerSink
	logger      *zap.SugaredLogger
}

func NewEngine(cfg Config, gw gateway.PushGateway, invalidator Invalidator, ledger LedgerSink, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:         cfg.withDefaults(),
		gateway:     gw,
		invalidator: invalidator,
		ledger:      ledger,
		logger:      logger,
	}
}

// Send dispatches the notification to every token and returns once all batches
// settled or the global timeout elapsed. Endpoints still unresolved at timeout
// are counted as failures so the record always completes. Per-endpoint
// failures are absorbed into the counts; the only error returned for a valid
// request is a validation failure, raised before any side effect.
func (e *Engine) Send(ctx context.Context, req broadcastmodels.NotificationRequest, target broadcastmodels.TargetSpec, tokens []string) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	// A broadcast runs to completion or timeout once started; caller
	// cancellation does not stop it.
	ctx = context.WithoutCancel(ctx)

	recordID := ""
	record, err := e.ledger.Create(ctx, req, target, len(tokens))
	if err != nil {
		// Delivery is favored over ledger accuracy: keep dispatching and skip
		// the counter updates.
		e.logger.Errorw("failed to create delivery record", "error", err)
	} else {
		recordID = record.ID
	}

	if len(tokens) == 0 {
		return Result{}, nil
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	// Ledger writes and invalidations must survive the dispatch timeout so the
	// record can be force-completed.
	persistCtx := ctx

	batches := partition(tokens, e.cfg.BatchSize)
	jobs := make(chan []string, len(batches))
	for _, b := range batches {
		jobs <- b
	}
	close(jobs)

	var (
		mu          sync.Mutex
		success     int
		failed      int
		workers     sync.WaitGroup
		invalidates sync.WaitGroup
	)

	workerCount := e.cfg.Concurrency
	if workerCount > len(batches) {
		workerCount = len(batches)
	}

	for i := 0; i < workerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for batch := range jobs {
				batchSuccess, batchFailed := 0, 0
				for _, token := range batch {
					outcome := e.sendOne(dispatchCtx, token, req)
					switch outcome {
					case gateway.Delivered:
						batchSuccess++
					case gateway.InvalidEndpoint:
						batchFailed++
						invalidates.Add(1)
						go func(token string) {
							defer invalidates.Done()
							if err := e.invalidator.Invalidate(persistCtx, token); err != nil {
								e.logger.Warnw("failed to invalidate endpoint", "error", err)
							}
						}(token)
					default:
						batchFailed++
					}
				}
				mu.Lock()
				success += batchSuccess
				failed += batchFailed
				mu.Unlock()
				if recordID != "" {
					if err := e.ledger.ApplyDelta(persistCtx, recordID, batchSuccess, batchFailed); err != nil {
						e.logger.Errorw("failed to apply delivery deltas", "record_id", recordID, "error", err)
					}
				}
			}
		}()
	}

	workers.Wait()
	invalidates.Wait()

	if dispatchCtx.Err() != nil {
		e.logger.Warnw("broadcast force-completed at timeout",
			"record_id", recordID,
			"total", len(tokens),
			"success", success,
			"failed", failed,
		)
	}

	return Result{Sent: len(tokens), Success: success, Failed: failed}, nil
}

// sendOne attempts delivery to a single endpoint, retrying transient failures
// with exponential backoff. Once the broadcast deadline has passed it settles
// as a failure without calling the gateway again.
func (e *Engine) sendOne(ctx context.Context, token string, req broadcastmodels.NotificationRequest) gateway.Outcome {
	backoff := e.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return gateway.TransientError
		}
		outcome, err := e.gateway.SendPush(ctx, token, req.Title, req.Body)
		if outcome != gateway.TransientError {
			return outcome
		}
		if attempt >= e.cfg.MaxRetries {
			e.logger.Warnw("endpoint failed after retries", "attempts", attempt+1, "error", err)
			return gateway.TransientError
		}
		select {
		case <-ctx.Done():
			return gateway.TransientError
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func partition(tokens []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		batches = append(batches, tokens[start:end])
	}
	return batches
}
