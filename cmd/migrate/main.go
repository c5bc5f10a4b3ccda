package main

import (
	"embed"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/JaimeStill/curator/internal/config"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

// deps are the side-effecting collaborators of run.
type deps struct {
	open       func(dsn string) (migrator, error)
	resolveDSN func() (string, error)
}

func main() {
	d := deps{open: open, resolveDSN: configuredDSN}
	if err := run(os.Args[1:], os.Stdout, d); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

// configuredDSN builds the connection URL from the service configuration
// (config.toml, overlay, .env, and CURATOR_DB_* variables).
func configuredDSN() (string, error) {
	db, err := config.LoadDatabase()
	if err != nil {
		return "", err
	}
	return db.URL(), nil
}

func open(dsn string) (migrator, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// run parses args, opens the migrator for the selected DSN, and executes the
// chosen command. Without --dsn the service database configuration is used.
func run(args []string, out io.Writer, d deps) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("migrate"),
		kong.Description("Apply curator database migrations."),
		kong.Writers(out, out),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	resolve := d.resolveDSN
	if resolve == nil {
		resolve = configuredDSN
	}

	dsn := cli.DSN
	if dsn == "" {
		if dsn, err = resolve(); err != nil {
			return fmt.Errorf("resolve dsn: %w", err)
		}
	}

	m, err := d.open(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx.BindTo(m, (*migrator)(nil))
	ctx.BindTo(out, (*io.Writer)(nil))
	return ctx.Run()
}
