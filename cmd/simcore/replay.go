package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/recorder"
)

// replayErrorf wraps err as a *cliError whose exit code distinguishes
// corrupt/truncated/unreadable recordings (4) from a component schema
// mismatch (5), per the recording error taxonomy recorder/reader.go
// already tags every failure with. A plain, untagged error (e.g. the
// initial os.Open failing) falls back to the generic I/O code.
func replayErrorf(err error, format string, args ...any) error {
	return &cliError{code: replayExitCode(err), err: fmt.Errorf(format, args...)}
}

func replayExitCode(err error) int {
	var se *ecs.StoreError
	if errors.As(err, &se) {
		switch se.Code {
		case ecs.ErrCorruptRecording, ecs.ErrTruncatedFrame, ecs.ErrIoFailure:
			return exitCorruptInput
		case ecs.ErrSchemaMismatch, ecs.ErrUnregisteredPolymorphicType:
			return exitSchemaMismatch
		}
	}
	return exitIOFailure
}

func init() {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a flight recording frame by frame and print a summary",
		RunE:  runReplay,
	}
	cmd.Flags().String("in", "", "input recording file (required)")
	cmd.MarkFlagRequired("in")
	rootCmd.AddCommand(cmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	if in == "" {
		return usageErrorf("simcore replay: --in is required")
	}

	f, err := os.Open(in)
	if err != nil {
		return replayErrorf(err, "simcore replay: open %s: %w", in, err)
	}
	defer f.Close()

	store := ecs.NewStore()
	if _, err := registerDemoComponents(store); err != nil {
		return runtimeErrorf("simcore replay: register components: %w", err)
	}

	r, err := recorder.NewReader(f, store.Registry())
	if err != nil {
		return replayErrorf(err, "simcore replay: read header: %w", err)
	}

	count := 0
	for {
		ok, err := r.ReadNextFrame(store)
		if err != nil {
			return replayErrorf(err, "simcore replay: frame %d: %w", count, err)
		}
		if !ok {
			break
		}
		fmt.Fprintf(cmd.OutOrStdout(), "frame %d: kind=%s active_entities=%d\n", count, r.KindAt(count), len(store.GetActiveEntities()))
		count++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d frames from %s\n", count, in)
	return nil
}
