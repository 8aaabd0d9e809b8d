// Command seed-db loads the product catalog from a JSON file into PostgreSQL
// and optionally seeds a demo loyalty account.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sportstyle/store/internal/domain/product"
	"github.com/sportstyle/store/internal/repository"
)

type productJSON struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency"`
	Category           string          `json:"category"`
	League             string          `json:"league"`
	Team               string          `json:"team"`
	ImageURL           string          `json:"image_url"`
	PersonalizationFee decimal.Decimal `json:"personalization_fee"`
	Sizes              []string        `json:"sizes"`
	StockBySize        map[string]int  `json:"stock_by_size"`
	Featured           bool            `json:"featured"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		demoUserID   string
		demoPoints   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&demoUserID, "demo-user", "", "user ID to seed a demo loyalty balance for")
	flag.IntVar(&demoPoints, "demo-points", 500, "loyalty balance for the demo user")
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

	if err := run(ctx, databaseURL, productsFile, demoUserID, demoPoints); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, demoUserID string, demoPoints int) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if demoUserID != "" {
		if err := repository.NewLoyaltyRepository(pool).SetBalance(ctx, demoUserID, demoPoints); err != nil {
			return errors.Wrap(err, "seed loyalty account")
		}
		slog.Info("seeded loyalty account",
			slog.String("user", demoUserID), slog.Int("points", demoPoints))
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, pj := range products {
		g.Go(func() error {
			p := product.Product{
				ID:                 pj.ID,
				Name:               pj.Name,
				Description:        pj.Description,
				Price:              pj.Price,
				Currency:           pj.Currency,
				Category:           pj.Category,
				League:             pj.League,
				Team:               pj.Team,
				ImageURL:           pj.ImageURL,
				PersonalizationFee: pj.PersonalizationFee,
				Sizes:              pj.Sizes,
				StockBySize:        pj.StockBySize,
				Featured:           pj.Featured,
				Active:             true,
			}
			if p.Currency == "" {
				p.Currency = "EUR"
			}
			if err := repo.Upsert(ctx, &p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}

			slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
			return nil
		})
	}

	return g.Wait()
}
