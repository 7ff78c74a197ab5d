// Package main seeds reference data and a demo dealer account, then prints
// development tokens for the built-in principals.
//
// Seeding is idempotent: records are keyed by stable ids and existing ones
// are left untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/api/middleware"
	"autohaus.io/cms/internal/app/modules"
	"autohaus.io/cms/internal/catalog"
	"autohaus.io/cms/internal/config"
	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/governance/permission"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/store"
)

const demoDealerID = "user-demo-dealer"

type options struct {
	skipData   bool
	skipTokens bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed reference data and print development tokens",
		Long: `Seed inserts currencies, cities, makes, models, features and a demo dealer
with an active subscription into the configured record store. Existing records are
left untouched. It then prints signed tokens for the admin, dealer and editor
accounts.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.skipData, "skip-data", false, "do not insert reference data")
	cmd.Flags().BoolVar(&opts.skipTokens, "skip-tokens", false, "do not print development tokens")
	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if !opts.skipData {
		infra, err := modules.NewInfrastructure(ctx, cfg)
		if err != nil {
			return fmt.Errorf("init infrastructure: %w", err)
		}
		defer infra.Close()

		logger.Info("Starting data seeding...")
		created, err := seedRecords(ctx, infra.Store, referenceData(time.Now().UTC()))
		if err != nil {
			return fmt.Errorf("seed records: %w", err)
		}
		logger.Info("Data seeding completed successfully", zap.Int("created", created))
	}

	if opts.skipTokens {
		return nil
	}
	return printTokens(out, modules.NewJWTConfig(cfg), devPrincipals())
}

func printTokens(out io.Writer, cfg middleware.JWTConfig, principals []domain.Principal) error {
	for _, p := range principals {
		token, exp, err := middleware.GenerateToken(cfg, p)
		if err != nil {
			return fmt.Errorf("token for %s: %w", p.Username, err)
		}
		fmt.Fprintf(out, "%-8s %s (expires %s)\n", p.Username, token, exp.Format(time.RFC3339))
	}
	return nil
}

// devPrincipals are the accounts tokens are printed for.
func devPrincipals() []domain.Principal {
	return []domain.Principal{
		{ID: "user-default-admin", Username: "admin", Elevated: true},
		{ID: demoDealerID, Username: "dealer", Role: "Dealer"},
		{ID: "user-demo-editor", Username: "editor", Role: "Editor"},
	}
}

// referenceData returns the seed records in dependency order.
func referenceData(now time.Time) []store.Record {
	rec := func(typ, id string, values map[string]any) store.Record {
		return store.Record{Type: typ, ID: id, Values: values}
	}
	model := func(id, makeID, name string, year int64, fuel string) store.Record {
		return rec("model", id, map[string]any{
			"make": makeID, "name": name, "year": year,
			"transmission": "automatic", "fuel_type": fuel, "drivetrain": "front_wheel_drive",
		})
	}

	return []store.Record{
		rec("currency", "eur", map[string]any{"name": "Euro", "symbol": "€"}),
		rec("currency", "usd", map[string]any{"name": "US Dollar", "symbol": "$"}),
		rec("city", "berlin", map[string]any{"name": "Berlin"}),
		rec("city", "hamburg", map[string]any{"name": "Hamburg"}),
		rec("city", "munich", map[string]any{"name": "München"}),
		rec("make", "volkswagen", map[string]any{"name": "Volkswagen"}),
		rec("make", "bmw", map[string]any{"name": "BMW"}),
		rec("make", "audi", map[string]any{"name": "Audi"}),
		model("vw-golf", "volkswagen", "Golf", 2020, "petrol"),
		model("vw-id3", "volkswagen", "ID.3", 2022, "electric"),
		model("bmw-3", "bmw", "3 Series", 2019, "diesel"),
		model("audi-a4", "audi", "A4", 2021, "petrol"),
		rec("feature", "abs", map[string]any{"name": "ABS"}),
		rec("feature", "navigation", map[string]any{"name": "Navigation"}),
		rec("feature", "heated-seats", map[string]any{"name": "Heated Seats"}),
		rec(catalog.TypeSeller, "seller-demo", map[string]any{
			"name": "Autohaus Demo", "city": "berlin", "user": demoDealerID, "whatsapp": false,
		}),
		rec(catalog.TypeSubscription, "subscription-demo", map[string]any{
			"user":       demoDealerID,
			"status":     permission.StatusActive,
			"start_date": now.Format(time.DateOnly),
			"end_date":   now.AddDate(1, 0, 0).Format(time.DateOnly),
		}),
	}
}

// seedRecords inserts the records that do not exist yet and reports how many
// were created.
func seedRecords(ctx context.Context, st store.Store, recs []store.Record) (int, error) {
	created := 0
	err := st.Update(ctx, func(tx store.Tx) error {
		for i := range recs {
			rec := recs[i]
			_, err := tx.Get(ctx, rec.Type, rec.ID)
			if err == nil {
				logger.Debug("Record already exists, skipping",
					zap.String("type", rec.Type), zap.String("id", rec.ID))
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := tx.Insert(ctx, &rec); err != nil {
				return fmt.Errorf("insert %s %s: %w", rec.Type, rec.ID, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
