package shop

import (
	"context"
	"sort"
	"sync"
	"time"
)

// In-memory implementations of the engine's ports. The mutexes give the
// same atomicity the real stores provide via row locking, so concurrency
// tests exercise real interleavings.

type memLedger struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func newMemLedger() *memLedger {
	return &memLedger{orders: map[string]*Order{}}
}

func (l *memLedger) Insert(_ context.Context, o *Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[o.ID]; ok {
		return ErrDuplicateOrder
	}
	l.orders[o.ID] = cloneOrder(o)
	return nil
}

func (l *memLedger) Get(_ context.Context, id string) (*Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (l *memLedger) TryTransition(_ context.Context, id string, from, to Status, codes []string) (*Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Status != from || !CanTransition(from, to) {
		return nil, ErrConflict
	}
	o.Status = to
	o.AssignedCodes = append([]string(nil), codes...)
	o.UpdatedAt = time.Now()
	return cloneOrder(o), nil
}

func (l *memLedger) ListRecent(_ context.Context, limit int) ([]Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		all = append(all, *cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.AssignedCodes = append([]string(nil), o.AssignedCodes...)
	return &c
}

type memPool struct {
	mu    sync.Mutex
	codes []RedemptionCode
}

func newMemPool(productID string, codes ...string) *memPool {
	p := &memPool{}
	for i, c := range codes {
		p.codes = append(p.codes, RedemptionCode{
			ID: int64(i + 1), ProductID: productID, Code: c, Status: CodeAvailable,
		})
	}
	return p
}

func (p *memPool) ClaimN(_ context.Context, productID string, n int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var idx []int
	for i, c := range p.codes {
		if c.ProductID == productID && c.Status == CodeAvailable {
			idx = append(idx, i)
			if len(idx) == n {
				break
			}
		}
	}
	if len(idx) < n {
		return nil, ErrInsufficientStock
	}
	out := make([]string, 0, n)
	now := time.Now()
	for _, i := range idx {
		p.codes[i].Status = CodeReserved
		p.codes[i].ReservedAt = &now
		out = append(out, p.codes[i].Code)
	}
	return out, nil
}

func (p *memPool) Release(_ context.Context, codes []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	want := map[string]bool{}
	for _, c := range codes {
		want[c] = true
	}
	for i := range p.codes {
		if want[p.codes[i].Code] && p.codes[i].Status == CodeReserved {
			p.codes[i].Status = CodeAvailable
			p.codes[i].ReservedAt = nil
		}
	}
	return nil
}

func (p *memPool) StockCount(_ context.Context, productID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.codes {
		if c.ProductID == productID && c.Status == CodeAvailable {
			n++
		}
	}
	return n, nil
}

func (p *memPool) reservedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.codes {
		if c.Status == CodeReserved {
			n++
		}
	}
	return n
}

type stubGuard struct {
	mu    sync.Mutex
	allow bool
	calls []string
}

func (g *stubGuard) Allow(_ context.Context, sourceKey string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, sourceKey)
	return g.allow, nil
}

type memSink struct {
	mu     sync.Mutex
	events []string // eventType:orderID
}

func (s *memSink) Publish(_ context.Context, eventType, orderID string, _ any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType+":"+orderID)
}
