// Command menu-import bulk-loads dishes from gzipped JSON Lines exports.
// Multiple location exports usually carry the same dishes, so rows are
// deduplicated by name before writing. Duplicates that slip through still
// land on the upsert, which keeps the import idempotent.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/menu"
	"github.com/mfalcone/wasabi-takeaway/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

const upsertDishSQL = `INSERT INTO dishes (id, name, description, price, course, diet, photo)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (name) DO UPDATE
	SET description = $3, price = $4, course = $5, diet = $6, photo = $7`

type dishRow struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Course      string          `json:"course"`
	Diet        string          `json:"diet"`
	Photo       string          `json:"photo"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz menu exports")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("menu import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("menu import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	slog.Info("scanning exports", slog.Int("files", len(files)))

	dishes, err := collectDishes(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect dishes")
	}

	slog.Info("distinct dishes found", slog.Int("count", len(dishes)))
	if len(dishes) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeDishes(ctx, pool, dishes)
}

// collectDishes streams every export concurrently and keeps the first
// occurrence of each dish name. The bloom filter answers "seen before"
// without holding every name twice; a false positive only skips a row
// that an earlier export already supplied.
func collectDishes(ctx context.Context, files []string) ([]dishRow, error) {
	var (
		mu     sync.Mutex
		seen   = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		dishes []dishRow
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(func() error {
			var count uint64
			err := streamGzLines(ctx, path, func(line string) error {
				var row dishRow
				if err := json.Unmarshal([]byte(line), &row); err != nil {
					return errors.Wrapf(err, "parse row %q", truncate(line, 80))
				}
				if err := validateRow(row); err != nil {
					return errors.Wrapf(err, "invalid row %q", row.Name)
				}

				count++
				if count%progressEvery == 0 {
					slog.Info("scan progress", slog.String("file", filepath.Base(path)), slog.Uint64("rows", count))
				}

				key := strings.ToLower(row.Name)
				mu.Lock()
				if !seen.TestAndAddString(key) {
					dishes = append(dishes, row)
				}
				mu.Unlock()
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "stream %s", path)
			}

			slog.Info("scan complete", slog.String("file", filepath.Base(path)), slog.Uint64("rows", count))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dishes, nil
}

func validateRow(row dishRow) error {
	if row.Name == "" {
		return errors.New("missing name")
	}
	if row.Price.IsNegative() {
		return errors.New("negative price")
	}
	if !menu.Course(row.Course).Valid() {
		return errors.Errorf("unknown course %q", row.Course)
	}
	if !menu.Diet(row.Diet).Valid() {
		return errors.Errorf("unknown diet %q", row.Diet)
	}
	return nil
}

// streamGzLines opens a gzip-compressed file and calls fn for each
// non-empty line.
func streamGzLines(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

func writeDishes(ctx context.Context, pool *pgxpool.Pool, dishes []dishRow) error {
	slog.Info("writing dishes", slog.Int("count", len(dishes)))

	for i, d := range dishes {
		if _, err := pool.Exec(ctx, upsertDishSQL,
			uuid.New().String(), d.Name, d.Description, d.Price, d.Course, d.Diet, d.Photo,
		); err != nil {
			return errors.Wrapf(err, "upsert dish %q", d.Name)
		}

		if (i+1)%100 == 0 || i+1 == len(dishes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(dishes)))
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
