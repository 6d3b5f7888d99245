// Command seed-db loads the dish catalog and bootstrap API keys into the
// database. It is idempotent: rerunning it rewrites the same rows.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/auth"
	"github.com/mfalcone/wasabi-takeaway/internal/storage/postgres"
)

const upsertDishSQL = `INSERT INTO dishes (id, name, description, price, course, diet, photo)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (name) DO UPDATE
	SET description = $3, price = $4, course = $5, diet = $6, photo = $7`

type dishJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Course      string          `json:"course"`
	Diet        string          `json:"diet"`
	Photo       string          `json:"photo"`
}

func main() {
	var (
		databaseURL string
		dishesFile  string
		staffKey    string
		customerKey string
		customerID  string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&dishesFile, "dishes-file", "db/seed/dishes.json", "path to dishes JSON file")
	flag.StringVar(&staffKey, "staff-key", "", "staff API key to seed (or WASABI_SEED_STAFF_KEY env)")
	flag.StringVar(&customerKey, "customer-key", "", "customer API key to seed (or WASABI_SEED_CUSTOMER_KEY env)")
	flag.StringVar(&customerID, "customer-id", "demo-customer", "customer ID bound to the customer key")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or WASABI_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if staffKey == "" {
		staffKey = os.Getenv("WASABI_SEED_STAFF_KEY")
	}
	if customerKey == "" {
		customerKey = os.Getenv("WASABI_SEED_CUSTOMER_KEY")
	}
	if pepper == "" {
		pepper = os.Getenv("WASABI_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, dishesFile, staffKey, customerKey, customerID, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, dishesFile, staffKey, customerKey, customerID, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedDishes(ctx, pool, dishesFile); err != nil {
		return errors.Wrap(err, "seed dishes")
	}

	apikeys := postgres.NewAPIKeyRepository(pool)
	if staffKey != "" {
		if err := seedAPIKey(ctx, apikeys, "staff", staffKey, pepper, auth.RoleStaff, ""); err != nil {
			return errors.Wrap(err, "seed staff key")
		}
	}
	if customerKey != "" {
		if err := seedAPIKey(ctx, apikeys, "customer", customerKey, pepper, auth.RoleCustomer, customerID); err != nil {
			return errors.Wrap(err, "seed customer key")
		}
	}

	return nil
}

func seedDishes(ctx context.Context, pool *pgxpool.Pool, dishesFile string) error {
	slog.Info("reading dishes file", slog.String("path", dishesFile))

	data, err := os.ReadFile(dishesFile)
	if err != nil {
		return errors.Wrap(err, "read dishes file")
	}

	var dishes []dishJSON
	if err := json.Unmarshal(data, &dishes); err != nil {
		return errors.Wrap(err, "parse dishes JSON")
	}

	slog.Info("upserting dishes", slog.Int("count", len(dishes)))

	for _, d := range dishes {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if _, err := pool.Exec(ctx, upsertDishSQL,
			d.ID, d.Name, d.Description, d.Price, d.Course, d.Diet, d.Photo,
		); err != nil {
			return errors.Wrapf(err, "upsert dish %q", d.Name)
		}

		slog.Info("upserted dish", slog.String("name", d.Name), slog.String("course", d.Course))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, id, key, pepper string, role auth.Role, customerID string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:         id,
		KeyHash:    keyHash,
		Name:       "Seeded " + string(role) + " key",
		Role:       role,
		CustomerID: customerID,
	}); err != nil {
		return errors.Wrapf(err, "upsert API key %q", id)
	}

	slog.Info("upserted API key", slog.String("id", id), slog.String("role", string(role)))

	return nil
}
