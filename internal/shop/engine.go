package shop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	DisambiguatorMin = 101
	DisambiguatorMax = 999
)

// Ledger is the durable order store. TryTransition is the only path by
// which status changes; the check-and-set must be atomic in the store.
type Ledger interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	TryTransition(ctx context.Context, id string, from, to Status, codes []string) (*Order, error)
	ListRecent(ctx context.Context, limit int) ([]Order, error)
}

// CodePool is the durable voucher store. ClaimN must be all-or-nothing and
// atomic against concurrent claims on the same product.
type CodePool interface {
	ClaimN(ctx context.Context, productID string, n int) ([]string, error)
	Release(ctx context.Context, codes []string) error
	StockCount(ctx context.Context, productID string) (int, error)
}

// Guard admits or rejects new checkouts per source key.
type Guard interface {
	Allow(ctx context.Context, sourceKey string) (bool, error)
}

// Catalog maps product ids to their immutable catalog entries.
type Catalog interface {
	Lookup(id string) (Product, bool)
	All() []Product
}

type CheckoutResult struct {
	OrderID     string
	Quantity    int
	TotalAmount int64
	ExpiresAt   time.Time
}

// Engine orchestrates Catalog, Ledger, CodePool and Guard to implement
// checkout, stock query, idempotent confirmation and lazy expiry.
type Engine struct {
	Catalog Catalog
	Ledger  Ledger
	Pool    CodePool
	Guard   Guard
	Events  EventSink // optional

	OrderTTL time.Duration
	Now      func() time.Time
}

func NewEngine(cat Catalog, ledger Ledger, pool CodePool, guard Guard, orderTTL time.Duration) *Engine {
	return &Engine{
		Catalog:  cat,
		Ledger:   ledger,
		Pool:     pool,
		Guard:    guard,
		OrderTTL: orderTTL,
		Now:      time.Now,
	}
}

// Checkout creates a Pending order with a disambiguated payment amount.
func (e *Engine) Checkout(ctx context.Context, productID string, qty int, sourceKey string) (*CheckoutResult, error) {
	ok, err := e.Guard.Allow(ctx, sourceKey)
	if err != nil {
		// guard rusak -> loloskan, jangan blokir checkout
		log.Printf("guard allow %s: %v", sourceKey, err)
		ok = true
	}
	if !ok {
		return nil, ErrRateLimited
	}

	prod, found := e.Catalog.Lookup(productID)
	if !found {
		return nil, ErrUnknownProduct
	}
	if qty < 1 {
		qty = 1
	}

	stock, err := e.Pool.StockCount(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("stock count: %w", err)
	}
	if stock == 0 {
		return nil, ErrOutOfStock
	}
	if qty > stock {
		qty = stock
	}

	now := e.Now().UTC()
	o := &Order{
		ID:            uuid.NewString(),
		ProductID:     productID,
		Quantity:      qty,
		UnitPrice:     prod.UnitPrice,
		Disambiguator: int64(DisambiguatorMin + rand.Intn(DisambiguatorMax-DisambiguatorMin+1)),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	o.TotalAmount = prod.UnitPrice*int64(qty) + o.Disambiguator

	if err := e.Ledger.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	e.publish(ctx, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID: o.ID, ProductID: o.ProductID, Quantity: o.Quantity, TotalAmount: o.TotalAmount,
	})

	return &CheckoutResult{
		OrderID:     o.ID,
		Quantity:    qty,
		TotalAmount: o.TotalAmount,
		ExpiresAt:   now.Add(e.OrderTTL),
	}, nil
}

// GetStatus returns the order, lazily cancelling it first when the payment
// window has lapsed. Expiry can never override a concurrent Paid transition
// because the cancel is a conditional from-Pending update.
func (e *Engine) GetStatus(ctx context.Context, orderID string) (*Order, error) {
	o, err := e.Ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return e.expireIfStale(ctx, o)
}

// Confirm marks a Pending order Paid with exactly one freshly claimed set of
// codes. Repeat calls on a Paid order return the recorded codes unchanged.
func (e *Engine) Confirm(ctx context.Context, orderID string) (*Order, error) {
	o, err := e.Ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o, err = e.expireIfStale(ctx, o)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case StatusPaid:
		return o, nil // idempotent replay
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	}

	codes, err := e.Pool.ClaimN(ctx, o.ProductID, o.Quantity)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			// A concurrent Confirm on this same order may have taken the
			// last stock; re-read before reporting. Otherwise the order
			// stays Pending and the operator may retry after restock.
			cur, gerr := e.Ledger.Get(ctx, o.ID)
			if gerr == nil && cur.Status == StatusPaid {
				return cur, nil
			}
			return nil, ErrOutOfStock
		}
		return nil, fmt.Errorf("claim codes: %w", err)
	}

	updated, err := e.Ledger.TryTransition(ctx, o.ID, StatusPending, StatusPaid, codes)
	if err == nil {
		e.publish(ctx, EventOrderPaid, updated.ID, OrderPaidPayload{
			OrderID: updated.ID, ProductID: updated.ProductID, Codes: updated.AssignedCodes,
		})
		return updated, nil
	}
	if !errors.Is(err, ErrConflict) {
		// store error of unknown shape: the claim stands but the order did
		// not flip, so hand the codes back before surfacing the failure.
		e.releaseClaimed(codes)
		return nil, fmt.Errorf("transition to paid: %w", err)
	}

	// Kalah balapan: entah expiry atau Confirm lain yang menang. Kode yang
	// barusan kita claim tidak tercatat di order manapun, kembalikan.
	e.releaseClaimed(codes)

	cur, err := e.Ledger.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	switch cur.Status {
	case StatusPaid:
		return cur, nil // pemenang balapan sudah mencatat kodenya sendiri
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	default:
		return nil, fmt.Errorf("order %s in unexpected state %s after conflict", cur.ID, cur.Status)
	}
}

// ListProducts composes the catalog with live stock. Pure read.
func (e *Engine) ListProducts(ctx context.Context) ([]ProductStock, error) {
	prods := e.Catalog.All()
	out := make([]ProductStock, 0, len(prods))
	for _, p := range prods {
		stock, err := e.Pool.StockCount(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("stock count %s: %w", p.ID, err)
		}
		out = append(out, ProductStock{Product: p, Stock: stock})
	}
	return out, nil
}

// ListRecent exposes the newest orders for the operator console.
func (e *Engine) ListRecent(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.Ledger.ListRecent(ctx, limit)
}

func (e *Engine) expireIfStale(ctx context.Context, o *Order) (*Order, error) {
	if o.Status.Terminal() || e.Now().Sub(o.CreatedAt) <= e.OrderTTL {
		return o, nil
	}
	cancelled, err := e.Ledger.TryTransition(ctx, o.ID, StatusPending, StatusCancelled, nil)
	if err == nil {
		e.publish(ctx, EventOrderExpired, o.ID, OrderExpiredPayload{OrderID: o.ID})
		return cancelled, nil
	}
	if errors.Is(err, ErrConflict) {
		// orang lain sudah men-transisi; baca ulang dan pakai hasilnya
		return e.Ledger.Get(ctx, o.ID)
	}
	return nil, fmt.Errorf("expire order %s: %w", o.ID, err)
}

// releaseClaimed hands codes back to the pool after a lost confirmation
// race. Runs detached from the request context so a caller timeout cannot
// strand Reserved rows.
func (e *Engine) releaseClaimed(codes []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Pool.Release(ctx, codes); err != nil {
		log.Printf("release %d claimed codes: %v", len(codes), err)
	}
}

func (e *Engine) publish(ctx context.Context, eventType, orderID string, payload any) {
	if e.Events == nil {
		return
	}
	e.Events.Publish(ctx, eventType, orderID, payload)
}
