//go:build perf || perf_large

package perf

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/mesh-architect/internal/api"
	"github.com/signalsfoundry/mesh-architect/internal/logging"
	"github.com/signalsfoundry/mesh-architect/internal/state"
)

type perfConfig struct {
	// Nodes placed on a square grid; every pair becomes a link.
	Nodes int
	// Moves applied after placement, each forcing a full recompute.
	Moves int
}

var roles = []string{"controller", "relay", "sensor", "client", "uxs"}

func nodeRequest(i int) *structpb.Struct {
	side := 1
	for side*side < i+1 {
		side++
	}
	req, err := structpb.NewStruct(map[string]any{
		"node": map[string]any{
			"id":   fmt.Sprintf("node-%d", i),
			"role": roles[i%len(roles)],
			"lat":  39.8 + float64(i/side)*0.001,
			"lng":  -98.5 + float64(i%side)*0.001,
		},
	})
	if err != nil {
		panic(err)
	}
	return req
}

func benchmarkUpsert(b *testing.B, cfg perfConfig) {
	ctx := context.Background()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		svc := api.NewPlannerService(state.NewPlanState(logging.Noop()), logging.Noop())

		b.ResetTimer()
		for j := 0; j < cfg.Nodes; j++ {
			if _, err := svc.UpsertNode(ctx, nodeRequest(j)); err != nil {
				b.Fatalf("UpsertNode(%d): %v", j, err)
			}
		}
		b.StopTimer()
	}
}

func benchmarkMoves(b *testing.B, cfg perfConfig) {
	ctx := context.Background()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		st := state.NewPlanState(logging.Noop())
		svc := api.NewPlannerService(st, logging.Noop())
		for j := 0; j < cfg.Nodes; j++ {
			if _, err := svc.UpsertNode(ctx, nodeRequest(j)); err != nil {
				b.Fatalf("UpsertNode(%d): %v", j, err)
			}
		}

		b.ResetTimer()
		for j := 0; j < cfg.Moves; j++ {
			id := fmt.Sprintf("node-%d", j%cfg.Nodes)
			if err := st.MoveNode(ctx, id, 39.8+float64(j%100)*0.0001, -98.5); err != nil {
				b.Fatalf("MoveNode(%s): %v", id, err)
			}
		}
		b.StopTimer()
	}
}

func benchmarkAnalysis(b *testing.B, cfg perfConfig) {
	ctx := context.Background()
	st := state.NewPlanState(logging.Noop())
	svc := api.NewPlannerService(st, logging.Noop())
	for j := 0; j < cfg.Nodes; j++ {
		if _, err := svc.UpsertNode(ctx, nodeRequest(j)); err != nil {
			b.Fatalf("UpsertNode(%d): %v", j, err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.GetAnalysis(ctx, &structpb.Struct{}); err != nil {
			b.Fatalf("GetAnalysis: %v", err)
		}
	}
}
