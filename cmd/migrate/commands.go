package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4"
)

// migrator is the subset of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Close() (error, error)
}

type CLI struct {
	DSN string `name:"dsn" env:"CURATOR_DB_DSN" help:"PostgreSQL connection URL. Defaults to the configured database."`

	Up      UpCmd      `cmd:"" help:"Apply all up migrations."`
	Down    DownCmd    `cmd:"" help:"Revert all migrations."`
	Steps   StepsCmd   `cmd:"" help:"Apply N migrations; negative N reverts (pass after --)."`
	Version VersionCmd `cmd:"" help:"Print the current migration version."`
	Force   ForceCmd   `cmd:"" help:"Force the recorded version without running migrations."`
}

type (
	UpCmd   struct{}
	DownCmd struct{}

	StepsCmd struct {
		N int `arg:"" help:"Number of migrations."`
	}

	VersionCmd struct{}

	ForceCmd struct {
		Version int `arg:"" help:"Version to record."`
	}
)

func (UpCmd) Run(m migrator, out io.Writer) error {
	if err := ignoreNoChange(m.Up()); err != nil {
		return fmt.Errorf("up: %w", err)
	}
	fmt.Fprintln(out, "migrations applied")
	return nil
}

func (DownCmd) Run(m migrator, out io.Writer) error {
	if err := ignoreNoChange(m.Down()); err != nil {
		return fmt.Errorf("down: %w", err)
	}
	fmt.Fprintln(out, "migrations reverted")
	return nil
}

func (c StepsCmd) Run(m migrator, out io.Writer) error {
	if c.N == 0 {
		return errors.New("steps: N must be non-zero")
	}
	if err := ignoreNoChange(m.Steps(c.N)); err != nil {
		return fmt.Errorf("steps: %w", err)
	}
	fmt.Fprintf(out, "applied %d migration steps\n", c.N)
	return nil
}

func (VersionCmd) Run(m migrator, out io.Writer) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	fmt.Fprintf(out, "version: %d, dirty: %v\n", v, dirty)
	return nil
}

func (c ForceCmd) Run(m migrator, out io.Writer) error {
	if err := m.Force(c.Version); err != nil {
		return fmt.Errorf("force: %w", err)
	}
	fmt.Fprintf(out, "forced to version %d\n", c.Version)
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
