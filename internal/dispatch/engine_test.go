package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"io.winapps.pushcast/internal/dispatch"
	"io.winapps.pushcast/internal/gateway"
	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

// fakeGateway serves scripted outcome sequences per token; tokens without a
// script always deliver. It also tracks call counts and peak concurrency.
type fakeGateway struct {
	mu          sync.Mutex
	scripts     map[string][]gateway.Outcome
	calls       map[string]int
	hold        time.Duration
	inFlight    int
	maxInFlight int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		scripts: make(map[string][]gateway.Outcome),
		calls:   make(map[string]int),
	}
}

func (g *fakeGateway) script(token string, outcomes ...gateway.Outcome) {
	g.scripts[token] = outcomes
}

func (g *fakeGateway) SendPush(ctx context.Context, token, title, body string) (gateway.Outcome, error) {
	g.mu.Lock()
	g.calls[token]++
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	outcome := gateway.Delivered
	if s := g.scripts[token]; len(s) > 0 {
		outcome = s[0]
		g.scripts[token] = s[1:]
	}
	g.mu.Unlock()

	if g.hold > 0 {
		select {
		case <-ctx.Done():
			outcome = gateway.TransientError
		case <-time.After(g.hold):
		}
	}

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()

	if outcome == gateway.Delivered {
		return outcome, nil
	}
	return outcome, errors.New("push failed")
}

func (g *fakeGateway) callCount(token string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[token]
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

type fakeInvalidator struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func newFakeInvalidator() *fakeInvalidator {
	return &fakeInvalidator{tokens: make(map[string]bool)}
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = true
	return nil
}

func (f *fakeInvalidator) invalidated(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[token]
}

// memLedger applies deltas to an in-memory record and flags any counter
// overrun past the fixed total.
type memLedger struct {
	mu         sync.Mutex
	failCreate bool
	created    int
	record     broadcastmodels.DeliveryRecord
	deltaCalls int
	overrun    bool
}

func (l *memLedger) Create(ctx context.Context, req broadcastmodels.NotificationRequest, target broadcastmodels.TargetSpec, total int) (broadcastmodels.DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCreate {
		return broadcastmodels.DeliveryRecord{}, errors.New("ledger unavailable")
	}
	l.created++
	l.record = broadcastmodels.DeliveryRecord{
		ID:         "record-1",
		Title:      req.Title,
		Body:       req.Body,
		TargetType: target.String(),
		CreatedAt:  time.Now(),
		Total:      total,
	}
	return l.record, nil
}

func (l *memLedger) ApplyDelta(ctx context.Context, id string, successDelta, failureDelta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deltaCalls++
	l.record.SuccessCount += successDelta
	l.record.FailureCount += failureDelta
	if l.record.SuccessCount+l.record.FailureCount > l.record.Total {
		l.overrun = true
	}
	return nil
}

func (l *memLedger) snapshot() broadcastmodels.DeliveryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record
}

func testConfig() dispatch.Config {
	cfg := dispatch.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func newTestEngine(cfg dispatch.Config, gw *fakeGateway, inv *fakeInvalidator, l *memLedger) *dispatch.Engine {
	return dispatch.NewEngine(cfg, gw, inv, l, zap.NewNop().Sugar())
}

func TestSendDeliversToAllEndpoints(t *testing.T) {
	gw := newFakeGateway()
	inv := newFakeInvalidator()
	l := &memLedger{}
	engine := newTestEngine(testConfig(), gw, inv, l)

	tokens := []string{"p-1", "p-2", "d-1", "d-2"}
	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetAll, tokens)

	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Sent: 4, Success: 4, Failed: 0}, result)

	record := l.snapshot()
	assert.Equal(t, 4, record.Total)
	assert.Equal(t, broadcastmodels.StatusCompleted, record.Status())
	assert.False(t, l.overrun)
}

func TestSendInvalidEndpointIsInvalidated(t *testing.T) {
	gw := newFakeGateway()
	gw.script("dead-token", gateway.InvalidEndpoint)
	inv := newFakeInvalidator()
	l := &memLedger{}
	engine := newTestEngine(testConfig(), gw, inv, l)

	tokens := []string{"t-1", "t-2", "dead-token", "t-3", "t-4"}
	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetAll, tokens)

	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Sent: 5, Success: 4, Failed: 1}, result)
	assert.True(t, inv.invalidated("dead-token"))
	// Invalid endpoints are not retried.
	assert.Equal(t, 1, gw.callCount("dead-token"))

	record := l.snapshot()
	assert.Equal(t, broadcastmodels.StatusCompleted, record.Status())
	assert.Equal(t, 1, record.FailureCount)
}

func TestSendRejectsInvalidNotification(t *testing.T) {
	gw := newFakeGateway()
	inv := newFakeInvalidator()
	l := &memLedger{}
	engine := newTestEngine(testConfig(), gw, inv, l)

	_, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "", Body: "body"}, broadcastmodels.TargetAll, []string{"t-1"})

	var validationErr *broadcastmodels.ValidationError
	require.ErrorAs(t, err, &validationErr)
	// Rejected before any side effect: no record, no gateway calls.
	assert.Equal(t, 0, l.created)
	assert.Equal(t, 0, gw.totalCalls())
}

func TestSendRetriesTransientFailures(t *testing.T) {
	gw := newFakeGateway()
	gw.script("flaky", gateway.TransientError, gateway.Delivered)
	inv := newFakeInvalidator()
	l := &memLedger{}
	engine := newTestEngine(testConfig(), gw, inv, l)

	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetDrivers, []string{"flaky"})

	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Sent: 1, Success: 1, Failed: 0}, result)
	assert.Equal(t, 2, gw.callCount("flaky"))
}

func TestSendGivesUpAfterMaxRetries(t *testing.T) {
	gw := newFakeGateway()
	gw.script("down", gateway.TransientError, gateway.TransientError, gateway.TransientError)
	inv := newFakeInvalidator()
	l := &memLedger{}
	engine := newTestEngine(testConfig(), gw, inv, l)

	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetPassengers, []string{"down"})

	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Sent: 1, Success: 0, Failed: 1}, result)
	// Initial attempt plus two retries.
	assert.Equal(t, 3, gw.callCount("down"))
	// Transient failure says nothing about the endpoint itself.
	assert.False(t, inv.invalidated("down"))
}

func TestSendEmptyAudience(t *testing.T) {
	gw := newFakeGateway()
	inv := newFakeInvalidator()
	l := &memLedger{}
	engine := newTestEngine(testConfig(), gw, inv, l)

	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetAll, nil)

	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{}, result)
	// The record is still written, already complete at total zero.
	assert.Equal(t, 1, l.created)
	assert.Equal(t, broadcastmodels.StatusCompleted, l.snapshot().Status())
}

func TestSendSplitsBatchesAndBoundsConcurrency(t *testing.T) {
	gw := newFakeGateway()
	gw.hold = 5 * time.Millisecond
	inv := newFakeInvalidator()
	l := &memLedger{}

	cfg := testConfig()
	cfg.BatchSize = 10
	cfg.Concurrency = 2
	engine := newTestEngine(cfg, gw, inv, l)

	tokens := make([]string, 25)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("token-%02d", i)
	}

	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetAll, tokens)

	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Sent: 25, Success: 25, Failed: 0}, result)

	gw.mu.Lock()
	maxInFlight := gw.maxInFlight
	gw.mu.Unlock()
	assert.LessOrEqual(t, maxInFlight, 2)

	// One delta per batch: 25 tokens over batches of 10.
	l.mu.Lock()
	deltaCalls := l.deltaCalls
	l.mu.Unlock()
	assert.Equal(t, 3, deltaCalls)
	assert.False(t, l.overrun)
	assert.Equal(t, broadcastmodels.StatusCompleted, l.snapshot().Status())
}

func TestSendTimeoutForcesCompletion(t *testing.T) {
	gw := newFakeGateway()
	gw.hold = 10 * time.Second
	inv := newFakeInvalidator()
	l := &memLedger{}

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	engine := newTestEngine(cfg, gw, inv, l)

	start := time.Now()
	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetAll, []string{"t-1", "t-2", "t-3"})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, dispatch.Result{Sent: 3, Success: 0, Failed: 3}, result)

	record := l.snapshot()
	assert.Equal(t, broadcastmodels.StatusCompleted, record.Status())
	assert.Equal(t, record.Total, record.SuccessCount+record.FailureCount)
}

func TestSendContinuesWhenLedgerFails(t *testing.T) {
	gw := newFakeGateway()
	inv := newFakeInvalidator()
	l := &memLedger{failCreate: true}
	engine := newTestEngine(testConfig(), gw, inv, l)

	result, err := engine.Send(context.Background(), broadcastmodels.NotificationRequest{Title: "Promo", Body: "20% off"}, broadcastmodels.TargetAll, []string{"t-1", "t-2"})

	// Delivery is favored over ledger accuracy.
	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Sent: 2, Success: 2, Failed: 0}, result)
}
