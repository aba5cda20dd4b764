// Command migrate applies, rolls back and scaffolds the schema migrations.
//
//	migrate [up|down|status|version|validate]
//	migrate to <version>
//	migrate create <name>
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/migrate"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"up"}
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg := logger.New(logger.Options{ServiceName: "migrate", Format: os.Getenv("BOOKSTORE_LOG_FORMAT")})
	ctx = logg.WithField(ctx, "cmd", args[0])

	if err := run(ctx, logg, args); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, args []string) error {
	// Offline commands work from a bare checkout with no database.
	switch args[0] {
	case "create":
		if len(args) < 2 {
			return errors.New("usage: migrate create <name>")
		}
		path, err := migrate.Scaffold(migrate.SourceDir, args[1], time.Now())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "file", path), "migrate.created")
		return nil
	case "validate":
		files, err := migrate.Validate(migrate.Embedded())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "files", len(files)), "migrate.valid")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	conn, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	m, err := migrate.New(conn, migrate.Embedded())
	if err != nil {
		return multierr.Append(err, conn.Close())
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	return multierr.Append(dispatch(ctx, logg, m, args), conn.Close())
}

func dispatch(ctx context.Context, logg *logger.Logger, m *migrate.Migrator, args []string) error {
	var (
		steps []migrate.Step
		err   error
	)
	switch args[0] {
	case "up":
		steps, err = m.Up(ctx)
	case "down":
		steps, err = m.Down(ctx)
	case "to":
		if len(args) < 2 {
			return errors.New("usage: migrate to <version>")
		}
		target, perr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil {
			return fmt.Errorf("version %q must be YYYYMMDDHHMMSS: %w", args[1], perr)
		}
		steps, err = m.To(ctx, target)
	case "version":
		v, verr := m.Version(ctx)
		if verr != nil {
			return verr
		}
		logg.Info(logg.WithField(ctx, "version", v), "migrate.version")
		return nil
	case "status":
		rows, serr := m.Status(ctx)
		if serr != nil {
			return serr
		}
		for _, row := range rows {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"version":    row.Version,
				"file":       row.Path,
				"applied":    row.Applied,
				"applied_at": row.AppliedAt,
			}), "migrate.status")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	for _, s := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     s.Version,
			"file":        s.Path,
			"direction":   s.Direction,
			"duration_ms": s.Duration.Milliseconds(),
		}), "migrate.step")
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate.done")
	return nil
}
