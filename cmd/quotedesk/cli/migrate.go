package cli

import (
	"fmt"
	"io"
	"strconv"
)

// Migrator is the schema migration surface used by the CLI.
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
}

// RunMigrate executes "up", "down [steps]" or "version".
func RunMigrate(m Migrator, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("migrate: expected up, down or version")
	}
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("migrate: invalid step count %q", args[1])
			}
			steps = n
		}
		if err := m.Down(steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("migrate: unknown command %q", args[0])
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "schema version %d (dirty=%t)\n", version, dirty)
	return err
}
