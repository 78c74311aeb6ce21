package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jask/jaskledger/internal/api"
	"github.com/jask/jaskledger/internal/config"
	"github.com/jask/jaskledger/internal/database"
	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/service"
	"github.com/jask/jaskledger/internal/tui"
)

const usage = `usage: jaskledger <command> [flags]

commands:
  serve                         run the HTTP API (and the scheduler when enabled)
  migrate                       apply database migrations and exit
  preview  -account ID          print what applying the active rules would do
  apply    -account ID          categorize every transaction with exactly one applicable rule
  resolve  -account ID          pick rules for conflicted transactions interactively
  import   -account ID -file F  import a bank statement
  backup   -out F               write a JSON backup ("-" for stdout)
  restore  -in F                replace all data with a JSON backup
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger, cmd string, args []string) error {
	switch cmd {
	case "migrate":
		if err := migrate(cfg); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.Database.Driver).Msg("migrations applied")
		return nil
	case "serve":
		return withServices(ctx, cfg, func(svc *service.Services) error { return serve(ctx, cfg, log, svc) })
	case "preview", "apply", "resolve":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		account := fs.String("account", "", "account id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *account == "" {
			return fmt.Errorf("%s: -account is required", cmd)
		}
		return withServices(ctx, cfg, func(svc *service.Services) error {
			switch cmd {
			case "preview":
				rows, err := svc.Preview.Preview(ctx, *account)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, rows)
			case "apply":
				res, err := svc.Apply.Apply(ctx, *account)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, res)
			default:
				return resolve(ctx, cfg, svc, *account)
			}
		})
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		account := fs.String("account", "", "account id")
		file := fs.String("file", "", "statement file")
		delimiter := fs.String("delimiter", ",", "field delimiter")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *account == "" || *file == "" {
			return errors.New("import: -account and -file are required")
		}
		comma, _ := utf8.DecodeRuneInString(*delimiter)
		return withServices(ctx, cfg, func(svc *service.Services) error {
			f, err := os.Open(*file)
			if err != nil {
				return err
			}
			defer f.Close()
			res, err := svc.Ingest.Import(ctx, *account, f, comma)
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				log.Warn().Err(e).Msg("row skipped")
			}
			log.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Str("file", *file).Msg("import finished")
			return nil
		})
	case "backup":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		out := fs.String("out", "-", "output file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withServices(ctx, cfg, func(svc *service.Services) error {
			var w io.Writer = os.Stdout
			if *out != "-" {
				f, err := os.Create(*out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return svc.Backup.Export(ctx, w)
		})
	case "restore":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		in := fs.String("in", "", "backup file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *in == "" {
			return errors.New("restore: -in is required")
		}
		return withServices(ctx, cfg, func(svc *service.Services) error {
			f, err := os.Open(*in)
			if err != nil {
				return err
			}
			defer f.Close()
			counts, err := svc.Backup.Import(ctx, f)
			if err != nil {
				return err
			}
			log.Info().Str("file", *in).Msg("backup restored")
			return printJSON(os.Stdout, counts)
		})
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func dataSource(cfg config.Config) string {
	if cfg.Database.Driver == database.DriverMySQL {
		return cfg.Database.DSN
	}
	return cfg.Database.Path
}

func migrate(cfg config.Config) error {
	if cfg.Database.Driver == database.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	if err := database.RunMigrations(cfg.Database.Driver, dataSource(cfg), cfg.Database.Migrations); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// withServices prepares the store and hands the wired services to fn.
func withServices(ctx context.Context, cfg config.Config, fn func(*service.Services) error) error {
	if err := migrate(cfg); err != nil {
		return err
	}
	db, err := database.Open(cfg.Database.Driver, dataSource(cfg))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	if err := database.SeedDefaults(ctx, db); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}
	return fn(service.New(db))
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, svc *service.Services) error {
	if cfg.Scheduler.Enabled {
		sched, err := service.NewScheduler(svc.Ledger.Accounts, svc.Apply, cfg.Scheduler)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	app := api.New(svc, log, api.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(cfg.Server.Addr) }()
	log.Info().Str("addr", cfg.Server.Addr).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return app.Shutdown()
	}
}

func resolve(ctx context.Context, cfg config.Config, svc *service.Services, accountID string) error {
	// Log lines would corrupt the alt screen.
	ctx = logger.WithContext(ctx, logger.Nop())
	app := tui.New(ctx, accountID, svc.Preview, svc.Resolve, tui.Options{
		DateFormat:     cfg.UI.DateFormat,
		CurrencySymbol: cfg.UI.CurrencySymbol,
	})
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	if err := app.Err(); err != nil {
		return err
	}
	return printJSON(os.Stdout, app.Results())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
