package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andikarap/voucher-shop/internal/shop"
)

// CodePool stores redemption codes and hands them out via atomic claims.
type CodePool struct{ DB *pgxpool.Pool }

// ClaimN reserves exactly n available codes for one product, oldest rows
// first, or nothing at all. SKIP LOCKED keeps concurrent claims on the same
// product from blocking on each other's candidate rows.
func (p *CodePool) ClaimN(ctx context.Context, productID string, n int) ([]string, error) {
	if n < 1 {
		return nil, shop.ErrInsufficientStock
	}
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, code FROM redemption_codes
		WHERE product_id=$1 AND status=$2
		ORDER BY id
		LIMIT $3
		FOR UPDATE SKIP LOCKED`,
		productID, string(shop.CodeAvailable), n,
	)
	if err != nil {
		return nil, err
	}
	var ids []int64
	var codes []string
	for rows.Next() {
		var id int64
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		codes = append(codes, code)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) < n {
		return nil, shop.ErrInsufficientStock // rollback via defer, stok tak berubah
	}

	ct, err := tx.Exec(ctx, `
		UPDATE redemption_codes SET status=$2, reserved_at=now()
		WHERE id = ANY($1)`,
		ids, string(shop.CodeReserved),
	)
	if err != nil {
		return nil, err
	}
	if int(ct.RowsAffected()) != n {
		return nil, shop.ErrConflict // rows were locked by us, this should not happen
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return codes, nil
}

// Release flips reserved codes back to available. Compensation path only:
// called by the engine for codes whose claim lost the confirmation race.
func (p *CodePool) Release(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	_, err := p.DB.Exec(ctx, `
		UPDATE redemption_codes SET status=$2, reserved_at=NULL
		WHERE code = ANY($1) AND status=$3`,
		codes, string(shop.CodeAvailable), string(shop.CodeReserved),
	)
	return err
}

// StockCount is a pure read; never cached, selalu dihitung segar.
func (p *CodePool) StockCount(ctx context.Context, productID string) (int, error) {
	var n int
	err := p.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM redemption_codes
		WHERE product_id=$1 AND status=$2`,
		productID, string(shop.CodeAvailable),
	).Scan(&n)
	return n, err
}
