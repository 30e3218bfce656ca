// Command simcore drives the simulation core standalone: it can record a
// synthetic run to a flight-recorder file, replay one back, or benchmark
// raw entity/frame throughput.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes, documented for scripts driving simcore in CI/benchmarks.
// Not every command produces every code: record uses OK/IO/Usage,
// replay uses OK/CorruptInput/SchemaMismatch plus IO when the file cannot
// be opened or setup fails, bench uses OK/Usage plus IO for an internal
// failure.
const (
	exitOK             = 0
	exitIOFailure      = 2
	exitUsageError     = 3
	exitCorruptInput   = 4
	exitSchemaMismatch = 5
)

var rootCmd = &cobra.Command{
	Use:   "simcore",
	Short: "Deterministic ECS simulation core: record, replay, and benchmark runs",
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a runtime config YAML file (optional; env SIMCORE_* always wins)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return exitIOFailure
}

// cliError carries an explicit process exit code alongside the error
// message cobra prints.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &cliError{code: exitUsageError, err: fmt.Errorf(format, args...)}
}

// runtimeErrorf reports a non-usage failure as the generic I/O exit
// code. record and bench have no finer-grained taxonomy than
// usage-vs-everything-else; replay uses replayErrorf instead, since its
// failures need to distinguish corrupt input from a schema mismatch.
func runtimeErrorf(format string, args ...any) error {
	return &cliError{code: exitIOFailure, err: fmt.Errorf(format, args...)}
}
