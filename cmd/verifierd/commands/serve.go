package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwalsh-mfg/barcode-verifier/internal/clock"
	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
	"github.com/dwalsh-mfg/barcode-verifier/internal/export"
	"github.com/dwalsh-mfg/barcode-verifier/internal/hardware"
	"github.com/dwalsh-mfg/barcode-verifier/internal/hub"
	"github.com/dwalsh-mfg/barcode-verifier/internal/lock"
	"github.com/dwalsh-mfg/barcode-verifier/internal/repository"
	"github.com/dwalsh-mfg/barcode-verifier/internal/server"
	"github.com/dwalsh-mfg/barcode-verifier/internal/verify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification engine and HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:           cfg.Database.DSN,
		MaxConns:      cfg.Database.MaxConns,
		DialTimeout:   cfg.Database.DialTimeout,
		HealthTimeout: cfg.Database.HealthTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db, log); err != nil {
		return err
	}

	jobs := repository.NewJobRepository(db, log)
	scans := repository.NewScanRepository(db, log)
	shifts := repository.NewShiftRepository(db, log)
	state := repository.NewStateRepository(db, jobs, scans, log)

	clk := clock.System{}
	guard := lock.NewGuard(cfg.Line.SupervisorPIN, clk, log,
		lock.WithMaxAttempts(cfg.Line.PinMaxAttempts),
		lock.WithLockout(cfg.Line.PinLockout),
	)
	broadcast := hub.New(log, hub.WithQueueSize(cfg.Hub.QueueSize))
	defer broadcast.Close()
	hw := hardware.NewSimController(cfg.Line.AlarmDuration, log)

	engine := verify.NewEngine(jobs, scans, shifts, state, guard, hw, broadcast, clk, log,
		verify.WithLineName(cfg.Line.Name),
		verify.WithHardwareEnabled(cfg.Line.UseHardware),
		verify.WithRecentWindow(cfg.Line.RecentScans),
		verify.WithShiftHours(cfg.Line.ShiftStartHour, cfg.Line.ShiftEndHour),
	)
	if err := engine.Load(ctx); err != nil {
		return err
	}

	exports := export.NewService(jobs, scans, clk, log)
	srv := server.New(engine, exports, broadcast, cfg.Server.AdminToken, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return srv.Shutdown()
	})
	return g.Wait()
}
