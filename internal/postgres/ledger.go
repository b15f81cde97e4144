package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andikarap/voucher-shop/internal/shop"
)

// LedgerStore persists orders. Status only ever changes through
// TryTransition, a single conditional UPDATE.
type LedgerStore struct{ DB *pgxpool.Pool }

const orderCols = `id, product_id, quantity, unit_price, disambiguator, total_amount, status, assigned_codes, created_at, updated_at`

func (s *LedgerStore) Insert(ctx context.Context, o *shop.Order) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO orders(id, product_id, quantity, unit_price, disambiguator, total_amount, status, assigned_codes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.ProductID, o.Quantity, o.UnitPrice, o.Disambiguator, o.TotalAmount,
		string(o.Status), o.AssignedCodes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shop.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (s *LedgerStore) Get(ctx context.Context, id string) (*shop.Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shop.ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// TryTransition applies from->to only if the stored status still equals
// from. Concurrent callers on the same order get exactly one success; the
// loser sees ErrConflict.
func (s *LedgerStore) TryTransition(ctx context.Context, id string, from, to shop.Status, codes []string) (*shop.Order, error) {
	if !shop.CanTransition(from, to) {
		return nil, shop.ErrConflict
	}
	if codes == nil {
		codes = []string{}
	}
	row := s.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, assigned_codes=$4, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+orderCols,
		id, string(from), string(to), codes,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// baris ada tapi status sudah berubah, atau memang tidak ada
			var exists bool
			if qerr := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); qerr != nil {
				return nil, qerr
			}
			if !exists {
				return nil, shop.ErrOrderNotFound
			}
			return nil, shop.ErrConflict
		}
		return nil, err
	}
	return o, nil
}

func (s *LedgerStore) ListRecent(ctx context.Context, limit int) ([]shop.Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*shop.Order, error) {
	var o shop.Order
	var status string
	if err := row.Scan(&o.ID, &o.ProductID, &o.Quantity, &o.UnitPrice, &o.Disambiguator,
		&o.TotalAmount, &status, &o.AssignedCodes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = shop.Status(status)
	return &o, nil
}
