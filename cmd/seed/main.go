// Package main provides a CLI tool for seeding a tenant database with
// demo stock. Intended for local development and demos.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"millstock/internal/core/types"
	"millstock/internal/domain/intake"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/lots"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/internal/infrastructure/storage/postgres/ledger_repo"
	"millstock/internal/infrastructure/storage/postgres/lot_repo"
	"millstock/pkg/logger"
)

// demoBag is one seeded bag of product.
type demoBag struct {
	productType lots.ProductType
	weight      float64 // kg
	price       string  // per kg
	agedDays    int     // shifts bagging time into the past for FIFO demos
}

var demoBags = []demoBag{
	{lots.ProductRice, 50, "100", 14},
	{lots.ProductRice, 50, "100", 14},
	{lots.ProductRice, 30, "100", 7},
	{lots.ProductRice, 40, "110", 3},
	{lots.ProductRice, 40, "110", 3},
	{lots.ProductHusk, 25, "18", 10},
	{lots.ProductHusk, 25, "18", 10},
	{lots.ProductHusk, 25, "18", 2},
	{lots.ProductFlour, 20, "55", 5},
	{lots.ProductFlour, 20, "55", 5},
	{lots.ProductFlour, 20, "60", 1},
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// DATABASE_URL points at one tenant database, not the meta database.
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to tenant database")

	txManager := postgres.NewTxManager(pool)
	lotRepo := lot_repo.NewLotRepo()
	ledgerService := ledger.NewService(ledger_repo.NewLedgerRepo())
	intakeService := intake.NewService(lotRepo, ledgerService, txManager)

	bags := make([]intake.BagInput, len(demoBags))
	for i, b := range demoBags {
		price, err := types.NewMoneyFromString(b.price)
		if err != nil {
			log.Fatalw("bad demo price", "price", b.price, "error", err)
		}
		bags[i] = intake.BagInput{
			ProductType: b.productType,
			Weight:      types.NewWeightFromFloat64(b.weight),
			Price:       price,
		}
	}

	created, err := intakeService.Intake(ctx, bags)
	if err != nil {
		log.Fatalw("failed to seed lots", "error", err)
	}

	// Age lots so FIFO consumption order is visible in demos.
	for i, lot := range created {
		aged := time.Now().UTC().AddDate(0, 0, -demoBags[i].agedDays)
		if _, err := pool.Pool.Exec(ctx,
			`UPDATE stock_lots SET created_at = $1 WHERE id = $2`,
			aged, lot.ID,
		); err != nil {
			log.Warnw("failed to age lot", "lot_id", lot.ID, "error", err)
		}
	}

	log.Infow("seeding completed successfully", "lots", len(created))
}
