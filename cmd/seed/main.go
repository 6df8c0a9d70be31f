package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/floor/internal/auth"
	"github.com/kiwari-pos/floor/internal/config"
)

type seedProduct struct {
	name  string
	price string
}

var menu = []seedProduct{
	{"Nasi Bakar Ayam", "25000.00"},
	{"Nasi Bakar Cumi", "28000.00"},
	{"Es Teh Manis", "8000.00"},
	{"Es Jeruk", "10000.00"},
	{"Kerupuk", "3000.00"},
}

func main() {
	// CLI flags
	outletName := flag.String("outlet", "", "Outlet name")
	tableCount := flag.Int("tables", 8, "Number of dining tables to create")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "Lifetime of the printed dev tokens")
	flag.Parse()

	// Fall back to environment variables
	if *outletName == "" {
		*outletName = os.Getenv("SEED_OUTLET")
	}
	if *outletName == "" {
		*outletName = "Kiwari Nasi Bakar"
	}
	if *tableCount < 1 {
		log.Fatal("-tables must be >= 1")
	}

	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Seed in a transaction (atomicity: outlet, tables and menu or nothing)
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	outletID, err := seedOutlet(ctx, tx, *outletName)
	if err != nil {
		log.Fatalf("Failed to seed outlet: %v", err)
	}
	if err := seedTables(ctx, tx, outletID, *tableCount); err != nil {
		log.Fatalf("Failed to seed tables: %v", err)
	}
	if err := seedMenu(ctx, tx, outletID); err != nil {
		log.Fatalf("Failed to seed menu: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Outlet ID: %s", outletID)

	// Staff accounts live in the identity service; print signed tokens so the
	// floor API can be exercised locally.
	for _, role := range []string{auth.RoleOwner, auth.RoleManager, auth.RoleCashier, auth.RoleWaiter} {
		token, err := auth.GenerateToken(cfg.JWTSecret, uuid.New(), outletID, role, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to sign %s token: %v", role, err)
		}
		fmt.Printf("%s_TOKEN=%s\n", role, token)
	}
}

// seedOutlet creates the outlet if it doesn't exist.
func seedOutlet(ctx context.Context, tx pgx.Tx, name string) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM outlets WHERE name = $1 LIMIT 1`, name).Scan(&existingID)
	if err == nil {
		log.Printf("Outlet '%s' already exists (ID: %s), skipping", name, existingID)
		return existingID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("check outlet: %w", err)
	}

	var newID uuid.UUID
	err = tx.QueryRow(ctx, `INSERT INTO outlets (name) VALUES ($1) RETURNING id`, name).Scan(&newID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert outlet: %w", err)
	}

	log.Printf("Created outlet '%s' (ID: %s)", name, newID)
	return newID, nil
}

// seedTables creates T1..Tn, alternating two- and four-seaters. Existing
// names are left alone.
func seedTables(ctx context.Context, tx pgx.Tx, outletID uuid.UUID, n int) error {
	created := 0
	for i := 1; i <= n; i++ {
		capacity := 4
		if i%2 == 1 {
			capacity = 2
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO dining_tables (outlet_id, name, capacity)
			VALUES ($1, $2, $3)
			ON CONFLICT (outlet_id, name) DO NOTHING
		`, outletID, fmt.Sprintf("T%d", i), capacity)
		if err != nil {
			return fmt.Errorf("insert table T%d: %w", i, err)
		}
		created += int(tag.RowsAffected())
	}
	log.Printf("Created %d tables", created)
	return nil
}

func seedMenu(ctx context.Context, tx pgx.Tx, outletID uuid.UUID) error {
	created := 0
	for _, p := range menu {
		tag, err := tx.Exec(ctx, `
			INSERT INTO products (outlet_id, name, base_price)
			SELECT $1::uuid, $2::varchar, $3::numeric
			WHERE NOT EXISTS (SELECT 1 FROM products WHERE outlet_id = $1 AND name = $2)
		`, outletID, p.name, p.price)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.name, err)
		}
		created += int(tag.RowsAffected())
	}
	log.Printf("Created %d products", created)
	return nil
}
