package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/risk"
	"sui-mev-indexer/internal/storage"
	"sui-mev-indexer/internal/storage/migrations"
	pgstore "sui-mev-indexer/internal/storage/postgres"
)

// borrowerExport is the JSON shape of one exported borrower with both
// position sides.
type borrowerExport struct {
	Platform     string           `json:"platform"`
	Borrower     string           `json:"borrower"`
	ObligationID *string          `json:"obligation_id,omitempty"`
	Status       string           `json:"status"`
	Deposits     []positionExport `json:"deposits,omitempty"`
	Borrows      []positionExport `json:"borrows,omitempty"`
}

type positionExport struct {
	CoinType string `json:"coin_type"`
	Amount   string `json:"amount"`
}

func main() {
	// Parse flags
	mode := flag.String("mode", "list", "Mode: list, export, import, or evaluate")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	platformsFlag := flag.String("platforms", "", "Comma-separated platforms (default: navi, suilend, scallop)")
	platform := flag.String("platform", "", "Platform of the borrower to evaluate")
	borrower := flag.String("borrower", "", "Borrower address to evaluate")
	file := flag.String("file", "", "File to export to or import from (default stdout/stdin)")
	statusFilter := flag.String("status", "all", "Status filter for list: active, liquidatable, closed, or all")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[borrowers] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()
	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Error: connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Error: run postgres migrations: %v", err)
	}

	platforms := splitList(*platformsFlag)
	if len(platforms) == 0 {
		platforms = risk.DefaultPlatforms
	}

	switch *mode {
	case "list":
		err = runList(ctx, pool, platforms, *statusFilter)
	case "export":
		err = runExport(ctx, pool, platforms, *file)
	case "import":
		err = runImport(ctx, logger, pool, *file)
	case "evaluate":
		err = runEvaluate(ctx, logger, pool, *platform, *borrower)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

// statuses selects which borrower statuses a filter covers.
func statuses(filter string) ([]domain.BorrowerStatus, error) {
	switch strings.ToLower(filter) {
	case "active":
		return []domain.BorrowerStatus{domain.BorrowerActive}, nil
	case "liquidatable":
		return []domain.BorrowerStatus{domain.BorrowerLiquidatable}, nil
	case "closed":
		return []domain.BorrowerStatus{domain.BorrowerClosed}, nil
	case "all":
		return []domain.BorrowerStatus{domain.BorrowerActive, domain.BorrowerLiquidatable, domain.BorrowerClosed}, nil
	}
	return nil, fmt.Errorf("unknown status filter %q", filter)
}

func collect(ctx context.Context, borrowers storage.BorrowerStore, platforms []string, filter string) ([]*domain.Borrower, error) {
	wanted, err := statuses(filter)
	if err != nil {
		return nil, err
	}

	var all []*domain.Borrower
	for _, platform := range platforms {
		for _, status := range wanted {
			batch, err := borrowers.GetByStatus(ctx, platform, status)
			if err != nil {
				return nil, fmt.Errorf("list %s borrowers on %s: %w", status, platform, err)
			}
			all = append(all, batch...)
		}
	}
	return all, nil
}

func runList(ctx context.Context, pool *pgstore.Pool, platforms []string, filter string) error {
	all, err := collect(ctx, pgstore.NewBorrowerStore(pool), platforms, filter)
	if err != nil {
		return err
	}

	for _, b := range all {
		obligation := "-"
		if b.ObligationID != nil {
			obligation = *b.ObligationID
		}
		fmt.Printf("%-10s %-66s %-13s %s\n", b.Platform, b.Borrower, b.Status, obligation)
	}
	fmt.Fprintf(os.Stderr, "%d borrowers\n", len(all))
	return nil
}

func runExport(ctx context.Context, pool *pgstore.Pool, platforms []string, file string) error {
	borrowers := pgstore.NewBorrowerStore(pool)
	deposits := pgstore.NewDepositStore(pool)
	borrows := pgstore.NewBorrowStore(pool)

	all, err := collect(ctx, borrowers, platforms, "all")
	if err != nil {
		return err
	}

	out := make([]borrowerExport, 0, len(all))
	for _, b := range all {
		entry := borrowerExport{
			Platform:     b.Platform,
			Borrower:     b.Borrower,
			ObligationID: b.ObligationID,
			Status:       b.Status.String(),
		}
		if entry.Deposits, err = positions(ctx, deposits, b); err != nil {
			return err
		}
		if entry.Borrows, err = positions(ctx, borrows, b); err != nil {
			return err
		}
		out = append(out, entry)
	}

	w := os.Stdout
	if file != "" {
		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func positions(ctx context.Context, store storage.PositionStore, b *domain.Borrower) ([]positionExport, error) {
	rows, err := store.GetByBorrower(ctx, b.Platform, b.Borrower)
	if err != nil {
		return nil, fmt.Errorf("positions of %s/%s: %w", b.Platform, b.Borrower, err)
	}
	out := make([]positionExport, 0, len(rows))
	for _, p := range rows {
		out = append(out, positionExport{CoinType: p.CoinType, Amount: p.Amount})
	}
	return out, nil
}

// runImport loads an export file into the database. Positions are applied
// as deltas on top of whatever is stored, so imports target a fresh
// database.
func runImport(ctx context.Context, logger *log.Logger, pool *pgstore.Pool, file string) error {
	r := os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var entries []borrowerExport
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("decode import file: %w", err)
	}

	borrowers := pgstore.NewBorrowerStore(pool)
	deposits := pgstore.NewDepositStore(pool)
	borrows := pgstore.NewBorrowStore(pool)

	for _, entry := range entries {
		b := &domain.Borrower{
			Platform:     entry.Platform,
			Borrower:     entry.Borrower,
			ObligationID: entry.ObligationID,
		}
		if err := borrowers.Upsert(ctx, b); err != nil {
			return fmt.Errorf("import borrower %s/%s: %w", entry.Platform, entry.Borrower, err)
		}
		if err := applyPositions(ctx, deposits, entry, entry.Deposits); err != nil {
			return err
		}
		if err := applyPositions(ctx, borrows, entry, entry.Borrows); err != nil {
			return err
		}
	}

	logger.Printf("Imported %d borrowers", len(entries))
	return nil
}

func applyPositions(ctx context.Context, store storage.PositionStore, entry borrowerExport, rows []positionExport) error {
	for _, p := range rows {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return fmt.Errorf("import %s/%s: parse amount %q: %w", entry.Platform, entry.Borrower, p.Amount, err)
		}
		if _, err := store.ApplyDelta(ctx, entry.Platform, entry.Borrower, p.CoinType, amount); err != nil {
			return fmt.Errorf("import position %s/%s/%s: %w", entry.Platform, entry.Borrower, p.CoinType, err)
		}
	}
	return nil
}

// runEvaluate recomputes one borrower's health factor through the same
// engine the live pipeline runs and prints the outcome.
func runEvaluate(ctx context.Context, logger *log.Logger, pool *pgstore.Pool, platform, borrower string) error {
	if platform == "" || borrower == "" {
		return fmt.Errorf("--platform and --borrower are required for evaluate")
	}

	borrowerStore := pgstore.NewBorrowerStore(pool)
	orderStore := pgstore.NewLiquidationOrderStore(pool)

	engine := risk.NewEngine(risk.EngineOptions{
		LendingMarketStore:    pgstore.NewLendingMarketStore(pool),
		BorrowerStore:         borrowerStore,
		DepositStore:          pgstore.NewDepositStore(pool),
		BorrowStore:           pgstore.NewBorrowStore(pool),
		CoinStore:             pgstore.NewCoinStore(pool),
		LiquidationOrderStore: orderStore,
		Logger:                logger,
	})

	if err := engine.Evaluate(ctx, platform, borrower); err != nil {
		return fmt.Errorf("evaluate %s/%s: %w", platform, borrower, err)
	}

	b, err := borrowerStore.Get(ctx, platform, borrower)
	if err != nil {
		return fmt.Errorf("load borrower %s/%s: %w", platform, borrower, err)
	}
	fmt.Printf("%s/%s status=%s\n", b.Platform, b.Borrower, b.Status)

	order, err := orderStore.GetOpen(ctx, platform, borrower)
	switch {
	case err == nil:
		fmt.Printf("open order %d: HF=%s repay %s %s against %s\n",
			order.ID, order.HealthFactor, order.AmountRepay, order.DebtCoin, order.CollateralCoin)
	case errors.Is(err, storage.ErrNotFound):
		fmt.Println("no open order")
	default:
		return fmt.Errorf("load open order: %w", err)
	}
	return nil
}

// splitList splits a comma-separated flag into trimmed non-empty items.
func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}
