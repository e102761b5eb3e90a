// Command seed-db loads courses, buyers, and coupons from a JSON fixture
// into the database for local runs and integration tests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ucademy/orderflow/internal/domain/coupon"
	"github.com/ucademy/orderflow/internal/repository"
)

type seedFile struct {
	Courses []courseJSON `json:"courses"`
	Buyers  []buyerJSON  `json:"buyers"`
	Coupons []couponJSON `json:"coupons"`
}

type courseJSON struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Slug  string          `json:"slug"`
	Price decimal.Decimal `json:"price"`
}

type buyerJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type couponJSON struct {
	Code       string          `json:"code"`
	Kind       string          `json:"kind"`
	Value      decimal.Decimal `json:"value"`
	Active     bool            `json:"active"`
	StartDate  *time.Time      `json:"startDate,omitempty"`
	EndDate    *time.Time      `json:"endDate,omitempty"`
	UsageLimit int             `json:"usageLimit"`
	CourseIDs  []string        `json:"courseIds"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	for _, c := range seed.Coupons {
		if !coupon.ValidCode(c.Code) {
			return errors.Errorf("invalid coupon code %q: must match 3-10 uppercase alphanumerics", c.Code)
		}
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	for _, c := range seed.Courses {
		_, err := pool.Exec(ctx,
			`INSERT INTO courses (id, title, slug, price) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET title = $2, slug = $3, price = $4`,
			c.ID, c.Title, c.Slug, c.Price)
		if err != nil {
			return errors.Wrapf(err, "seed course %q", c.ID)
		}
	}
	slog.Info("courses seeded", slog.Int("count", len(seed.Courses)))

	for _, b := range seed.Buyers {
		_, err := pool.Exec(ctx,
			`INSERT INTO buyers (id, name, email) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = $2, email = $3`,
			b.ID, b.Name, b.Email)
		if err != nil {
			return errors.Wrapf(err, "seed buyer %q", b.ID)
		}
	}
	slog.Info("buyers seeded", slog.Int("count", len(seed.Buyers)))

	for _, c := range seed.Coupons {
		id := uuid.New().String()
		err := pool.QueryRow(ctx,
			`INSERT INTO coupons (id, code, kind, value, active, start_date, end_date, usage_limit)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (code) DO UPDATE SET kind = $3, value = $4, active = $5,
				start_date = $6, end_date = $7, usage_limit = $8
			 RETURNING id`,
			id, c.Code, c.Kind, c.Value, c.Active, c.StartDate, c.EndDate, c.UsageLimit,
		).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "seed coupon %q", c.Code)
		}

		for _, courseID := range c.CourseIDs {
			_, err := pool.Exec(ctx,
				`INSERT INTO coupon_courses (coupon_id, course_id) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`,
				id, courseID)
			if err != nil {
				return errors.Wrapf(err, "seed coupon %q course %q", c.Code, courseID)
			}
		}
	}
	slog.Info("coupons seeded", slog.Int("count", len(seed.Coupons)))

	return nil
}
