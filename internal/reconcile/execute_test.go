package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"market_maker/internal/core"
	"market_maker/pkg/concurrency"
	apperrors "market_maker/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})                     {}
func (nopLogger) Info(string, ...interface{})                      {}
func (nopLogger) Warn(string, ...interface{})                      {}
func (nopLogger) Error(string, ...interface{})                     {}
func (nopLogger) Fatal(string, ...interface{})                     {}
func (l nopLogger) WithField(string, interface{}) core.ILogger     { return l }
func (l nopLogger) WithFields(map[string]interface{}) core.ILogger { return l }

type fakeChainClient struct {
	batchErr     error
	batchResults []core.BatchOpResult
	updateErr    error
	createErr    error
	updateCalls  int
	createCalls  int
}

func (f *fakeChainClient) ReadOpenOrders(context.Context, string, time.Duration) ([]core.ChainOrder, error) {
	return nil, nil
}

func (f *fakeChainClient) CreateOrder(context.Context, string, decimal.Decimal, string, decimal.Decimal, string, time.Time, bool) (string, bool, error) {
	f.createCalls++
	return "1.7.1", false, f.createErr
}

func (f *fakeChainClient) UpdateOrder(context.Context, string, string, decimal.Decimal, decimal.Decimal, *decimal.Decimal) error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakeChainClient) CancelOrder(context.Context, string, string) error { return nil }

func (f *fakeChainClient) ExecuteBatch(context.Context, string, []core.BatchOp) ([]core.BatchOpResult, error) {
	return f.batchResults, f.batchErr
}

func TestSubmitUpdatesHappyPath(t *testing.T) {
	chain := &fakeChainClient{batchResults: []core.BatchOpResult{{ChainOrderID: "1.7.1"}}}
	e := &Engine{Chain: chain, Logger: nopLogger{}}

	err := e.SubmitUpdates(context.Background(), "1.2.1", []core.BatchOp{{Kind: core.BatchOpUpdate}})
	require.NoError(t, err)
}

func TestSubmitUpdatesFallsBackToSequentialOnBatchUnsupported(t *testing.T) {
	chain := &fakeChainClient{batchErr: apperrors.ErrBatchUnsupported}
	e := &Engine{Chain: chain, Logger: nopLogger{}}

	err := e.SubmitUpdates(context.Background(), "1.2.1", []core.BatchOp{{Kind: core.BatchOpUpdate}})
	require.NoError(t, err)
	assert.Equal(t, 1, chain.updateCalls)
}

func TestSubmitUpdatesFallsBackAfterRetriesExhausted(t *testing.T) {
	chain := &fakeChainClient{batchErr: errors.New("rpc down")}
	recovered := false
	e := &Engine{
		Chain:  chain,
		Logger: nopLogger{},
		Recover: func(context.Context) ([]core.ChainOrder, error) {
			recovered = true
			return nil, nil
		},
	}

	err := e.SubmitUpdates(context.Background(), "1.2.1", []core.BatchOp{{Kind: core.BatchOpUpdate}})
	require.NoError(t, err) // sequential fallback succeeds even though batch failed
	assert.True(t, recovered)
	assert.Equal(t, 1, chain.updateCalls)
}

func TestBuildOutsideInGroupsAlternatesSellBuy(t *testing.T) {
	sellCreates := []PlannedAction{{SlotID: "e0"}, {SlotID: "e1"}}
	buyCreates := []PlannedAction{{SlotID: "b0"}}

	groups := BuildOutsideInGroups(sellCreates, buyCreates, "1.3.0", "1.3.121")
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Ops, 2, "first group pairs outermost sell and buy")
	assert.Len(t, groups[1].Ops, 1, "second group has only the remaining sell create")
}

func TestSubmitCreateGroupsRunsAllGroupsConcurrently(t *testing.T) {
	chain := &fakeChainClient{batchResults: []core.BatchOpResult{{ChainOrderID: "1.7.1"}}}
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "test"}, nopLogger{})
	defer pool.Stop()

	e := &Engine{Chain: chain, Logger: nopLogger{}, Pool: pool}
	groups := BuildOutsideInGroups(
		[]PlannedAction{{SlotID: "e0"}, {SlotID: "e1"}},
		[]PlannedAction{{SlotID: "b0"}, {SlotID: "b1"}},
		"1.3.0", "1.3.121",
	)

	err := e.SubmitCreateGroups(context.Background(), "1.2.1", groups)
	require.NoError(t, err)
}
