package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/infrastructure/config"
	"github.com/plebmarket/backend/internal/infrastructure/logger"
	"github.com/plebmarket/backend/internal/infrastructure/migration"
	"github.com/plebmarket/backend/migrations"
)

const defaultMigrationsDir = "migrations"

// command is one migrate subcommand. Commands with needsDB get a Migrator.
type command struct {
	usage   string
	help    string
	needsDB bool
	minArgs int
	run     func(env *cliEnv, args []string) error
}

type cliEnv struct {
	log      *zap.Logger
	dir      string // empty means embedded migrations
	migrator *migration.Migrator
}

func (e *cliEnv) source() fs.FS {
	if e.dir == "" {
		return migrations.FS
	}
	return os.DirFS(e.dir)
}

var commands = map[string]command{
	"up": {
		usage: "up", help: "Apply all pending migrations", needsDB: true,
		run: func(e *cliEnv, _ []string) error { return e.migrator.Up() },
	},
	"down": {
		usage: "down", help: "Roll back all migrations", needsDB: true,
		run: func(e *cliEnv, _ []string) error { return e.migrator.Down() },
	},
	"step": {
		usage: "step <n>", help: "Apply n migrations (negative rolls back)", needsDB: true, minArgs: 1,
		run: func(e *cliEnv, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return e.migrator.Steps(n)
		},
	},
	"version": {
		usage: "version", help: "Show the applied schema version", needsDB: true,
		run: func(e *cliEnv, _ []string) error {
			st, err := e.migrator.Status()
			if err != nil {
				return err
			}
			e.log.Info("Schema status", zap.Stringer("status", st))
			return nil
		},
	},
	"force": {
		usage: "force <version>", help: "Record a version without running it (clears dirty state)", needsDB: true, minArgs: 1,
		run: func(e *cliEnv, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return e.migrator.Force(v)
		},
	},
	"create": {
		usage: "create <name> [desc]", help: "Write the next sequential migration pair", minArgs: 1,
		run: func(e *cliEnv, args []string) error {
			if e.dir == "" {
				e.dir = defaultMigrationsDir
			}
			mf, err := migration.CreateMigration(e.dir, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			e.log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	},
	"list": {
		usage: "list", help: "List available migrations",
		run: func(e *cliEnv, _ []string) error {
			names, err := migration.ListMigrations(e.source())
			if err != nil {
				return err
			}
			e.log.Info("Available migrations", zap.Int("count", len(names)))
			for _, n := range names {
				fmt.Println("  -", n)
			}
			return nil
		},
	},
}

func main() {
	dir := flag.String("path", "", "Migrations directory (default: embedded; ./migrations for create)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if len(args)-1 < cmd.minArgs {
		fmt.Fprintf(os.Stderr, "usage: migrate %s\n", cmd.usage)
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
		Service:    "migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	env := &cliEnv{log: log}
	if *dir != "" {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			log.Fatal("Invalid migrations path", zap.Error(err))
		}
		env.dir = abs
	}

	if err := execute(env, cmd, args[1:]); err != nil {
		if errors.Is(err, migration.ErrDirty) {
			log.Error("Schema is dirty; inspect the failed migration and run force <version>", zap.Error(err))
		} else {
			log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		}
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func execute(env *cliEnv, cmd command, args []string) error {
	if !cmd.needsDB {
		return cmd.run(env, args)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	var fsys fs.FS
	if env.dir != "" {
		fsys = env.source()
	}
	m, err := migration.New(db, fsys, env.log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()

	env.migrator = m
	return cmd.run(env, args)
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Auction settlement schema migrations")
	fmt.Fprintln(out, "\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(out, "  %-22s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nThe database is read from PM_DATABASE_HOST, PM_DATABASE_PORT, PM_DATABASE_USER,")
	fmt.Fprintln(out, "PM_DATABASE_PASSWORD, PM_DATABASE_DBNAME and PM_DATABASE_SSLMODE.")
}
