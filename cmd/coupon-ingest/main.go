// Command coupon-ingest bulk-imports campaign promo codes from gzipped
// code lists (one code per line) and registers them as coupons sharing one
// discount rule. Files are scanned concurrently; a bloom filter keeps the
// cross-file duplicate check cheap before the exact in-memory check.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ucademy/orderflow/internal/domain/coupon"
	"github.com/ucademy/orderflow/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	insertBatch   = 1000
)

func main() {
	var (
		databaseURL string
		kind        string
		value       string
		usageLimit  int
		courseID    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&kind, "kind", "percent", "discount kind for imported codes: percent or amount")
	flag.StringVar(&value, "value", "10", "discount value for imported codes")
	flag.IntVar(&usageLimit, "usage-limit", 1, "usage limit per imported code (0 = unlimited)")
	flag.StringVar(&courseID, "course-id", "", "course the imported codes apply to")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" || courseID == "" || flag.NArg() == 0 {
		slog.Error("usage: coupon-ingest --database-url URL --course-id ID [flags] codes1.gz [codes2.gz ...]")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, kind, value, usageLimit, courseID, flag.Args()); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, databaseURL, kind, value string, usageLimit int, courseID string, files []string) error {
	discountValue, err := decimal.NewFromString(value)
	if err != nil {
		return errors.Wrap(err, "parse discount value")
	}
	if kind != string(coupon.KindPercent) && kind != string(coupon.KindAmount) {
		return errors.Errorf("unknown discount kind: %q", kind)
	}

	codes, err := collectCodes(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}
	slog.Info("codes collected", slog.Int("count", len(codes)))

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	inserted := 0
	for start := 0; start < len(codes); start += insertBatch {
		end := min(start+insertBatch, len(codes))

		batch, err := insertCoupons(ctx, pool, codes[start:end], kind, discountValue, usageLimit, courseID)
		if err != nil {
			return errors.Wrap(err, "insert coupons")
		}
		inserted += batch
	}
	slog.Info("coupons inserted", slog.Int("count", inserted))

	return nil
}

// collectCodes scans all files concurrently and returns the deduplicated
// set of codes matching the coupon code pattern.
func collectCodes(ctx context.Context, files []string) ([]string, error) {
	var (
		mu     sync.Mutex
		filter = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		seen   = make(map[string]struct{})
		codes  []string
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			return scanFile(ctx, file, func(code string) {
				mu.Lock()
				defer mu.Unlock()

				// Bloom says "definitely new" for most codes; only
				// possible duplicates pay for the map lookup.
				if filter.TestAndAddString(code) {
					if _, dup := seen[code]; dup {
						return
					}
				}
				seen[code] = struct{}{}
				codes = append(codes, code)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return codes, nil
}

func scanFile(ctx context.Context, path string, emit func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := scanner.Text()
		if coupon.ValidCode(code) {
			emit(code)
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

const insertCouponSQL = `WITH new_coupon AS (
		INSERT INTO coupons (id, code, kind, value, active, usage_limit)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (code) DO NOTHING
		RETURNING id
	)
	INSERT INTO coupon_courses (coupon_id, course_id)
	SELECT id, $6 FROM new_coupon`

// insertCoupons registers one chunk of codes in a single round trip.
func insertCoupons(
	ctx context.Context,
	pool *pgxpool.Pool,
	codes []string,
	kind string,
	value decimal.Decimal,
	usageLimit int,
	courseID string,
) (int, error) {
	batch := &pgx.Batch{}
	for _, code := range codes {
		batch.Queue(insertCouponSQL, uuid.New().String(), code, kind, value, usageLimit, courseID)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, code := range codes {
		tag, err := results.Exec()
		if err != nil {
			return inserted, errors.Wrapf(err, "insert coupon %q", code)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		}
	}
	return inserted, nil
}
