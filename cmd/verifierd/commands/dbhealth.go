package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
	"github.com/dwalsh-mfg/barcode-verifier/internal/repository"
)

var dbHealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check database connectivity and exit",
	RunE:  runDBHealth,
}

func runDBHealth(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg := common.LoadConfig()

	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.Database.DSN,
		DialTimeout: cfg.Database.DialTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, cfg.Database.HealthTimeout); err != nil {
		return err
	}
	log.Info("database healthy", "dialect", db.Dialect)
	return nil
}
