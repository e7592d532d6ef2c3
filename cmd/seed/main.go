// seed は設定ファイルの銘柄カタログをDBへ投入します。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stock_simulator/internal/app/di"
	"stock_simulator/internal/platform/config"
	infradb "stock_simulator/internal/platform/db"
)

var rootCmd = &cobra.Command{
	Use:          "seed --config configs/simulator.yaml",
	Short:        "Upsert the configured instrument catalogue into the database",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}
		return run(cmd.Context(), path, dryRun)
	},
}

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	rootCmd.Flags().String("config", "configs/simulator.yaml", "simulator config file")
	rootCmd.Flags().Bool("dry-run", false, "print the catalogue without writing to the database")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, dryRun bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	instruments := cfg.SeedInstruments()
	if dryRun {
		for _, inst := range instruments {
			fmt.Printf("%s\t%s\t%.2f\t%s\n", inst.ID, inst.Symbol, inst.CurrentPrice, inst.Name)
		}
		return nil
	}

	dbCfg := infradb.LoadConfigFromEnv()
	dbCfg.Migrate = true
	db, err := infradb.OpenDB(dbCfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	sim, err := di.NewSimulation(cfg, db, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sim.Dispatcher.Close() }()

	if err := sim.Loader.Seed(ctx, instruments); err != nil {
		return err
	}
	n, err := sim.Loader.Load(ctx)
	if err != nil {
		return err
	}
	slog.Info("seed completed", "active_instruments", n)
	return nil
}
