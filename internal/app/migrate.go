package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/channelhub/backend/internal/config"
	"github.com/channelhub/backend/internal/db"
	"github.com/channelhub/backend/internal/logging"
	"github.com/channelhub/backend/internal/metrics"
)

const (
	migrationAttempts    = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second

	schemaVersionsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
)

// serialization_failure, deadlock_detected and lock_not_available.
var transientSQLStates = []string{"40001", "40P01", "55P03"}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stdout, level), nil
}

// databaseCommand loads the database settings, puts the command logger on ctx
// and hands fn one pooled connection.
func databaseCommand(ctx context.Context, name string, fn func(context.Context, config.Config, *pgxpool.Conn) error) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx = logging.WithLogger(ctx, logger.With(slog.String("command", name)))

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(ctx, cfg, conn)
}

func runMigrations(ctx context.Context, args []string) error {
	command := "up"
	if len(args) > 0 && args[0] != "" {
		command = args[0]
	}
	switch command {
	case "up", "status":
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	return databaseCommand(ctx, "migrate "+command, func(ctx context.Context, cfg config.Config, conn *pgxpool.Conn) error {
		logger := logging.FromContext(ctx)

		dir, err := absDir(cfg.MigrationDir)
		if err != nil {
			return err
		}
		files, err := sqlFiles(dir)
		if err != nil {
			return err
		}

		if _, err := conn.Exec(ctx, schemaVersionsDDL); err != nil {
			return fmt.Errorf("ensure schema_migrations table: %w", err)
		}
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		pending := pendingMigrations(files, applied)

		if command == "status" {
			for _, name := range files {
				logger.Info("migration status", slog.String("version", name), slog.Bool("applied", applied[name]))
			}
			logger.Info("migrations pending", slog.Int("count", len(pending)))
			return nil
		}

		for _, name := range pending {
			contents, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("read migration %s: %w", name, err)
			}
			err = retryTransient(ctx, name, func() error {
				return pgx.BeginTxFunc(ctx, conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
					if _, err := tx.Exec(ctx, string(contents)); err != nil {
						return err
					}
					_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name)
					return err
				})
			})
			if err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
			recordApplied(ctx, "migration", name)
		}
		logger.Info("migrations up to date", slog.Int("applied", len(pending)), slog.Int("total", len(files)))
		return nil
	})
}

func runSeed(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("expected seed name (e.g. dev)")
	}
	name := seedFileName(args[0])

	return databaseCommand(ctx, "seed", func(ctx context.Context, cfg config.Config, conn *pgxpool.Conn) error {
		dir, err := absDir(cfg.SeedDir)
		if err != nil {
			return err
		}
		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read seed %s: %w", name, err)
		}
		if _, err := conn.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
		recordApplied(ctx, "seed", name)
		return nil
	})
}

func recordApplied(ctx context.Context, kind, version string) {
	metrics.MigrationsAppliedTotal.WithLabelValues(kind).Inc()
	logging.FromContext(ctx).Info(kind+" applied", slog.String("version", version))
}

func absDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}

// sqlFiles lists the .sql files directly inside dir in lexical order.
func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func appliedVersions(ctx context.Context, conn *pgxpool.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func pendingMigrations(files []string, applied map[string]bool) []string {
	pending := make([]string, 0, len(files))
	for _, name := range files {
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	return pending
}

// seedFileName maps "dev" to "dev_seed.sql"; explicit file names pass through.
func seedFileName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, ".sql") {
		return name
	}
	return name + "_seed.sql"
}

// retryTransient runs fn up to migrationAttempts times, sleeping between
// attempts while the failure is a transient database error.
func retryTransient(ctx context.Context, version string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= migrationAttempts; attempt++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		if attempt == migrationAttempts {
			break
		}
		logging.FromContext(ctx).Warn("transient migration error",
			slog.String("version", version),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(migrationBackoff(attempt)):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", migrationAttempts, err)
}

// migrationBackoff doubles from migrationBaseBackoff after each failed
// attempt, capped at migrationMaxBackoff.
func migrationBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := migrationBaseBackoff
	for i := 1; i < attempt && d < migrationMaxBackoff; i++ {
		d *= 2
	}
	return min(d, migrationMaxBackoff)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && slices.Contains(transientSQLStates, pgErr.Code)
}
