package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pjanec/simcore/internal/ecs"
)

func init() {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure raw entity-mutation throughput with no I/O",
		RunE:  runBench,
	}
	cmd.Flags().Int("entities", 100000, "number of entities to spawn")
	cmd.Flags().Int("frames", 600, "number of frames to simulate")
	rootCmd.AddCommand(cmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	entityCount, _ := cmd.Flags().GetInt("entities")
	frames, _ := cmd.Flags().GetInt("frames")
	if entityCount < 1 || frames < 1 {
		return usageErrorf("simcore bench: entities and frames must both be >= 1")
	}

	store := ecs.NewStore()
	if _, err := registerDemoComponents(store); err != nil {
		return runtimeErrorf("simcore bench: register components: %w", err)
	}

	entities := make([]ecs.Entity, entityCount)
	for i := range entities {
		e := store.CreateEntity()
		if err := ecs.AddComponent(store, e, transform{X: float64(i)}); err != nil {
			return runtimeErrorf("simcore bench: seed entity %d: %w", i, err)
		}
		entities[i] = e
	}

	start := time.Now()
	for frame := 0; frame < frames; frame++ {
		if err := store.Tick(); err != nil {
			return runtimeErrorf("simcore bench: tick: %w", err)
		}
		for _, e := range entities {
			cur, err := ecs.GetComponent[transform](store, e)
			if err != nil {
				continue
			}
			cur.X++
			_ = ecs.SetComponent(store, e, cur)
		}
		store.EndFrame()
	}
	elapsed := time.Since(start)

	totalOps := int64(entityCount) * int64(frames)
	fmt.Fprintf(cmd.OutOrStdout(), "entities=%d frames=%d elapsed=%s ops=%d ops/sec=%.0f\n",
		entityCount, frames, elapsed, totalOps, float64(totalOps)/elapsed.Seconds())
	return nil
}
