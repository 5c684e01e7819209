// Package core defines the interfaces the Grid Engine consumes from its
// external collaborators. No implementation lives here: the chain client,
// price oracle, and persistence layer are out of scope for this repository
// (spec §1/§5) — only their contracts do.
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ILogger defines the interface for structured logging.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// ChainAmount is a (assetID, amount) pair as carried on a chain order.
type ChainAmount struct {
	AssetID string
	Amount  decimal.Decimal
}

// ChainOrder is the wire shape of an order as read back from the chain
// (spec §5: `{ id, sell_price: {base, quote}, for_sale }`).
type ChainOrder struct {
	ID      string
	Base    ChainAmount
	Quote   ChainAmount
	ForSale decimal.Decimal
}

// BatchOpKind distinguishes create from update within a batch.
type BatchOpKind int

const (
	BatchOpCreate BatchOpKind = iota
	BatchOpUpdate
)

// BatchOp is one operation inside an ExecuteBatch call.
type BatchOp struct {
	Kind           BatchOpKind
	ChainOrderID   string // set for BatchOpUpdate
	AmountToSell   decimal.Decimal
	SellAssetID    string
	MinToReceive   decimal.Decimal
	ReceiveAssetID string
	NewPrice       *decimal.Decimal
}

// BatchOpResult is one entry of an executeBatch operation_results array
// (spec §5: "[[_, chainOrderId], …]").
type BatchOpResult struct {
	ChainOrderID string
	Err          error
}

// IChainClient defines the minimal chain RPC surface the Grid Engine needs.
// Signing and account/balance queries belong to the caller; this interface
// only covers order-book operations (spec §5).
type IChainClient interface {
	ReadOpenOrders(ctx context.Context, accountRef string, timeout time.Duration) ([]ChainOrder, error)

	CreateOrder(ctx context.Context, accountRef string, amountToSell decimal.Decimal, sellAssetID string,
		minToReceive decimal.Decimal, receiveAssetID string, expiration time.Time, fillOrKill bool) (chainOrderID string, skipped bool, err error)

	UpdateOrder(ctx context.Context, accountRef, chainOrderID string, amountToSell, minToReceive decimal.Decimal, newPrice *decimal.Decimal) error

	CancelOrder(ctx context.Context, accountRef, chainOrderID string) error

	// ExecuteBatch submits a set of create/update operations as one batch.
	// Returns one BatchOpResult per input op, in order. Implementations
	// that can't batch return ErrBatchUnsupported so callers fall back to
	// the sequential path (spec §4.E, §8).
	ExecuteBatch(ctx context.Context, accountRef string, ops []BatchOp) ([]BatchOpResult, error)
}

// PriceMode selects how IPriceOracle derives a reference price.
type PriceMode string

const (
	PriceModeAuto   PriceMode = "auto"
	PriceModePool   PriceMode = "pool"
	PriceModeMarket PriceMode = "market"
)

// IPriceOracle defines the external reference-price collaborator. Trend
// detectors, adaptive moving averages, and pool VWAPs are all external to
// the Grid Engine core; it only ever sees a derived price (spec §1, §5).
type IPriceOracle interface {
	DerivePrice(ctx context.Context, assetA, assetB string, mode PriceMode) (decimal.Decimal, error)
}

// SlotSnapshot is the persisted shape of a single grid slot (spec §5: "An
// ordered array of slot records {id, price, size, type, state, orderId?}
// plus boundaryIdx. No other fields are load-bearing.").
type SlotSnapshot struct {
	ID      string
	Price   decimal.Decimal
	Size    decimal.Decimal
	Type    string
	State   string
	OrderID string
}

// GridSnapshot is the full persisted shape: ordered slots plus boundary.
type GridSnapshot struct {
	Slots       []SlotSnapshot
	BoundaryIdx int
}

// IPersistence defines the opaque snapshot I/O collaborator (spec §5). The
// snapshot layout itself is the only load-bearing part; the storage format
// is out of scope.
type IPersistence interface {
	PersistGrid(ctx context.Context, snapshot GridSnapshot) error
	LoadPersistedGrid(ctx context.Context) (*GridSnapshot, error)
}

// AccountTotals is the account-wide funds snapshot the Sizing Engine needs
// before it can allocate a budget (spec §4.H: "Account-totals cache is a
// background-refreshed struct; callers must waitForAccountTotals(timeout)").
type AccountTotals struct {
	ChainFreeA decimal.Decimal
	ChainFreeB decimal.Decimal
	ChainTotalA decimal.Decimal
	ChainTotalB decimal.Decimal
}

// IAccountTotals defines the background-refreshed account totals cache.
type IAccountTotals interface {
	WaitForAccountTotals(ctx context.Context, timeout time.Duration) (AccountTotals, error)
}
