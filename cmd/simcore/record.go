package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pjanec/simcore/internal/config"
	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/obslog"
	"github.com/pjanec/simcore/internal/recorder"
	"github.com/pjanec/simcore/internal/telemetry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run a synthetic simulation and write a flight recording",
		RunE:  runRecord,
	}
	cmd.Flags().String("out", "", "output recording file (required)")
	cmd.Flags().Int("frames", 600, "number of frames to simulate")
	cmd.Flags().Int("entities", 100, "number of entities to spawn")
	cmd.Flags().Int("keyframe-interval", 300, "frames between keyframes")
	cmd.MarkFlagRequired("out")
	rootCmd.AddCommand(cmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	frames, _ := cmd.Flags().GetInt("frames")
	entityCount, _ := cmd.Flags().GetInt("entities")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return runtimeErrorf("simcore record: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return runtimeErrorf("simcore record: %w", err)
	}

	keyframeInterval := cfg.RecorderKeyframeInterval
	if cmd.Flags().Changed("keyframe-interval") {
		keyframeInterval, _ = cmd.Flags().GetInt("keyframe-interval")
	}

	if frames < 1 || entityCount < 1 || keyframeInterval < 1 {
		return usageErrorf("simcore record: frames, entities, and keyframe-interval must all be >= 1")
	}

	log := obslog.ForSubsystem(obslog.New(os.Stderr, "info"), "record")

	store := ecs.NewStore()
	if _, err := registerDemoComponents(store); err != nil {
		return runtimeErrorf("simcore record: register components: %w", err)
	}

	entities := make([]ecs.Entity, entityCount)
	for i := range entities {
		e := store.CreateEntity()
		if err := ecs.AddComponent(store, e, transform{X: float64(i)}); err != nil {
			return runtimeErrorf("simcore record: seed entity %d: %w", i, err)
		}
		entities[i] = e
	}

	f, err := os.Create(out)
	if err != nil {
		return runtimeErrorf("simcore record: create %s: %w", out, err)
	}
	defer f.Close()

	writer, err := recorder.NewWriter(f, store.Registry(), log)
	if err != nil {
		return runtimeErrorf("simcore record: init writer: %w", err)
	}

	metrics := telemetry.New()
	var lastDropped int64
	var since uint32
	for frame := 0; frame < frames; frame++ {
		if err := store.Tick(); err != nil {
			return runtimeErrorf("simcore record: tick: %w", err)
		}

		moving := entities[frame%len(entities)]
		cur, err := ecs.GetComponent[transform](store, moving)
		if err == nil {
			cur.X++
			_ = ecs.SetComponent(store, moving, cur)
		}

		if frame%keyframeInterval == 0 {
			if err := writer.CaptureKeyframe(store); err != nil {
				return runtimeErrorf("simcore record: capture keyframe at frame %d: %w", frame, err)
			}
			since = store.GlobalVersion()
		} else {
			if err := writer.CaptureDelta(store, since); err != nil {
				return runtimeErrorf("simcore record: capture delta at frame %d: %w", frame, err)
			}
		}

		if dropped := writer.DroppedFrames(); dropped > lastDropped {
			metrics.IncRecorderDropped()
			lastDropped = dropped
		} else {
			metrics.IncRecorderCaptured()
		}

		store.EndFrame()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded %d frames to %s (dropped=%d)\n", frames, out, writer.DroppedFrames())
	return nil
}
