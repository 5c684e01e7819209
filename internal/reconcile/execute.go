package reconcile

import (
	"context"
	"fmt"
	"time"

	"market_maker/internal/core"
	"market_maker/pkg/concurrency"
	apperrors "market_maker/pkg/errors"
	"market_maker/pkg/retry"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// UpdatePolicy is the retry policy for batch update submission (spec
// §4.E "Execution": "Updates are submitted as one batch, retried up to 3
// times").
var UpdatePolicy = retry.RetryPolicy{MaxAttempts: 4, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second}

// SequentialUpdatePolicy is the fallback per-operation policy once batch
// retries are exhausted (spec §4.E: "single op during reconcile: 1 retry
// after recovery sync").
var SequentialUpdatePolicy = retry.RetryPolicy{MaxAttempts: 2, InitialBackoff: 200 * time.Millisecond, MaxBackoff: time.Second}

// RecoverySync re-reads chain open orders and hands them back to the
// caller so it can re-plan remaining actions against fresh state (spec
// glossary "Recovery sync").
type RecoverySync func(ctx context.Context) ([]core.ChainOrder, error)

// Engine drives reconciliation execution: submitting planned updates as a
// batch with retry/fallback, and planned creates as outside-in pairs run
// concurrently through a worker pool.
type Engine struct {
	Chain   core.IChainClient
	Logger  core.ILogger
	Pool    *concurrency.WorkerPool
	Recover RecoverySync
}

func isTransient(err error) bool {
	return err != nil // every ChainOperationFailure in this contract is worth a retry; callers scope MaxAttempts instead.
}

// SubmitUpdates executes a batch of update operations with the retry +
// recovery-sync + sequential-fallback contract of spec §4.E.
func (e *Engine) SubmitUpdates(ctx context.Context, accountRef string, ops []core.BatchOp) error {
	err := retry.Do(ctx, UpdatePolicy, isTransient, func() error {
		results, batchErr := e.Chain.ExecuteBatch(ctx, accountRef, ops)
		if batchErr == apperrors.ErrBatchUnsupported {
			return e.submitSequential(ctx, accountRef, ops)
		}
		if batchErr != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrChainOperationFailure, batchErr)
		}
		return firstMissingID(results)
	})
	if err == nil {
		return nil
	}

	e.Logger.Warn("batch update failed after retries, running recovery sync", "error", err.Error())
	if e.Recover != nil {
		if _, recErr := e.Recover(ctx); recErr != nil {
			e.Logger.Error("recovery sync failed", "error", recErr.Error())
		}
	}

	return e.submitSequential(ctx, accountRef, ops)
}

func (e *Engine) submitSequential(ctx context.Context, accountRef string, ops []core.BatchOp) error {
	for _, op := range ops {
		op := op
		attempt := 0
		err := retry.Do(ctx, SequentialUpdatePolicy, isTransient, func() error {
			if attempt > 0 && e.Recover != nil {
				if _, recErr := e.Recover(ctx); recErr != nil {
					e.Logger.Error("recovery sync failed", "error", recErr.Error())
				}
			}
			attempt++
			return e.submitOne(ctx, accountRef, op)
		})
		if err != nil {
			e.Logger.Warn("sequential update failed, running recovery sync", "error", err.Error())
			if e.Recover != nil {
				if _, recErr := e.Recover(ctx); recErr != nil {
					e.Logger.Error("recovery sync failed", "error", recErr.Error())
				}
			}
			return fmt.Errorf("%w: %v", apperrors.ErrChainOperationFailure, err)
		}
	}
	return nil
}

func (e *Engine) submitOne(ctx context.Context, accountRef string, op core.BatchOp) error {
	switch op.Kind {
	case core.BatchOpUpdate:
		return e.Chain.UpdateOrder(ctx, accountRef, op.ChainOrderID, op.AmountToSell, op.MinToReceive, op.NewPrice)
	default:
		_, _, err := e.Chain.CreateOrder(ctx, accountRef, op.AmountToSell, op.SellAssetID, op.MinToReceive, op.ReceiveAssetID, time.Time{}, false)
		return err
	}
}

func firstMissingID(results []core.BatchOpResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
		if r.ChainOrderID == "" {
			return fmt.Errorf("%w: missing chainOrderId in batch result", apperrors.ErrChainOperationFailure)
		}
	}
	return nil
}

// CreateGroup is one outside-in alternating SELL/BUY pair of create
// operations submitted as a single batch (spec §4.E "Creates are grouped
// into outside-in pairs alternating SELL/BUY from the edges toward the
// mid").
type CreateGroup struct {
	Ops []core.BatchOp
}

// BuildOutsideInGroups interleaves sell and buy create plans from the
// edges toward the mid into alternating-pair groups (spec §7 scenario 2:
// "[sellOuter, buyOuter, sellInner, buyInner]").
func BuildOutsideInGroups(sellCreates, buyCreates []PlannedAction, sellAssetID, buyAssetID string) []CreateGroup {
	n := len(sellCreates)
	if len(buyCreates) > n {
		n = len(buyCreates)
	}
	groups := make([]CreateGroup, 0, n)
	for i := 0; i < n; i++ {
		var ops []core.BatchOp
		if i < len(sellCreates) {
			ops = append(ops, toCreateOp(sellCreates[i], sellAssetID))
		}
		if i < len(buyCreates) {
			ops = append(ops, toCreateOp(buyCreates[i], buyAssetID))
		}
		if len(ops) > 0 {
			groups = append(groups, CreateGroup{Ops: ops})
		}
	}
	return groups
}

func toCreateOp(a PlannedAction, sellAssetID string) core.BatchOp {
	return core.BatchOp{Kind: core.BatchOpCreate, AmountToSell: a.TargetSize, SellAssetID: sellAssetID}
}

// SubmitCreateGroups runs every outside-in group concurrently through the
// worker pool, each group's ops as one batch with recovery sync on
// failure. An errgroup collects the first hard failure across groups so
// the caller gets a single error instead of having to inspect N goroutine
// outcomes by hand (spec §4.E: "each group is submitted as one batch...
// on failure the group triggers a recovery sync").
func (e *Engine) SubmitCreateGroups(ctx context.Context, accountRef string, groups []CreateGroup) error {
	passID := uuid.NewString()
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		group, groupIdx := group, i
		g.Go(func() error {
			done := make(chan error, 1)
			submitErr := e.Pool.Submit(func() {
				done <- e.SubmitUpdates(gctx, accountRef, group.Ops)
			})
			if submitErr != nil {
				return submitErr
			}
			select {
			case err := <-done:
				if err != nil {
					e.Logger.Warn("create group failed", "passId", passID, "group", groupIdx, "error", err.Error())
				}
				return err
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reconcile pass %s: %w", passID, err)
	}
	return nil
}
