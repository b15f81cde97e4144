// Seeder bootstraps the schema and bulk-imports redemption codes from a
// file, one code per line. Inventory loading stays outside the engine.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/andikarap/voucher-shop/internal/shop"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL,
	quantity       INT NOT NULL,
	unit_price     BIGINT NOT NULL,
	disambiguator  BIGINT NOT NULL,
	total_amount   BIGINT NOT NULL,
	status         TEXT NOT NULL,
	assigned_codes TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC);

CREATE TABLE IF NOT EXISTS redemption_codes (
	id          BIGSERIAL PRIMARY KEY,
	product_id  TEXT NOT NULL,
	code        TEXT NOT NULL UNIQUE,
	status      TEXT NOT NULL DEFAULT 'AVAILABLE',
	reserved_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_codes_product_status ON redemption_codes (product_id, status);
`

func main() {
	_ = godotenv.Load()

	productID := flag.String("product", "", "product id the codes belong to")
	file := flag.String("file", "", "path to code list, one code per line")
	schemaOnly := flag.Bool("schema-only", false, "create tables and exit")
	flag.Parse()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	log.Println("schema ok")
	if *schemaOnly {
		return
	}

	if *productID == "" || *file == "" {
		log.Fatal("-product and -file are required (or pass -schema-only)")
	}

	codes, err := readCodes(*file)
	if err != nil {
		log.Fatalf("read codes: %v", err)
	}
	if len(codes) == 0 {
		log.Fatal("no codes in file")
	}

	// drop duplicates against what is already loaded
	fresh, err := filterExisting(ctx, conn, codes)
	if err != nil {
		log.Fatalf("dedup: %v", err)
	}
	if len(fresh) == 0 {
		log.Printf("all %d codes already present, nothing to do", len(codes))
		return
	}

	rows := make([][]any, 0, len(fresh))
	for _, c := range fresh {
		rows = append(rows, []any{*productID, c, string(shop.CodeAvailable)})
	}
	n, err := conn.CopyFrom(ctx,
		pgx.Identifier{"redemption_codes"},
		[]string{"product_id", "code", "status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatalf("bulk insert: %v", err)
	}
	log.Printf("imported %d codes for %s (%d skipped as duplicates)", n, *productID, len(codes)-len(fresh))
}

func readCodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := map[string]bool{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		c := strings.TrimSpace(sc.Text())
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, sc.Err()
}

func filterExisting(ctx context.Context, conn *pgx.Conn, codes []string) ([]string, error) {
	rows, err := conn.Query(ctx, `SELECT code FROM redemption_codes WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		existing[c] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var fresh []string
	for _, c := range codes {
		if !existing[c] {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}
