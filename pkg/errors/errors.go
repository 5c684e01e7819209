// Package apperrors defines the semantic error kinds the Grid Engine raises
// (spec §6). These are sentinels matched with errors.Is; raising sites add
// the offending value by wrapping a sentinel with fmt.Errorf and %w.
package apperrors

import "errors"

var (
	// ErrInvalidGridConfig marks validation failures in grid creation.
	// Fatal; surfaced to the caller immediately.
	ErrInvalidGridConfig = errors.New("invalid grid config")

	// ErrAssetPrecisionMissing marks unavailable asset metadata. Fatal
	// for any sizing operation.
	ErrAssetPrecisionMissing = errors.New("asset precision missing")

	// ErrAccountTotalsUnavailable marks a timed-out or missing account
	// totals refresh. Fatal during grid initialization; logged and
	// retried via recovery sync during steady state.
	ErrAccountTotalsUnavailable = errors.New("account totals unavailable")

	// ErrInsufficientFundsForMinimum marks a sized slot below the
	// minimum expressible size. Fatal; the operator must widen bounds
	// or add funds.
	ErrInsufficientFundsForMinimum = errors.New("insufficient funds for minimum slot size")

	// ErrChainOperationFailure marks a failed chain RPC. Retried per
	// the caller's policy (batch: 3 retries + sequential fallback;
	// single op during reconcile: 1 retry after recovery sync; spread
	// correction: no retry, zero effect).
	ErrChainOperationFailure = errors.New("chain operation failure")

	// ErrPhantomOrderDetected marks a slot claiming an on-chain id the
	// chain does not corroborate. Non-fatal; auto-sanitized by
	// downgrading the slot to VIRTUAL.
	ErrPhantomOrderDetected = errors.New("phantom order detected")

	// ErrBlockchainSyncSuspicious marks an impossibly large on-chain
	// size. Fatal; treated as data corruption.
	ErrBlockchainSyncSuspicious = errors.New("suspicious on-chain size")

	// ErrVersionConflict marks a COW base-version mismatch at commit
	// time. Non-fatal; the working grid is discarded and a recovery
	// sync is triggered.
	ErrVersionConflict = errors.New("grid version conflict")

	// ErrBatchUnsupported signals that the chain client cannot execute
	// a batch; callers fall back to the sequential path (spec §4.E, §8).
	ErrBatchUnsupported = errors.New("batch execution unsupported")
)
