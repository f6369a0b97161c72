//go:build perf

package perf

import "testing"

var smallConfig = perfConfig{
	Nodes: 60,
	Moves: 200,
}

func BenchmarkUpsertSmall(b *testing.B) {
	benchmarkUpsert(b, smallConfig)
}

func BenchmarkMoveSmall(b *testing.B) {
	benchmarkMoves(b, smallConfig)
}

func BenchmarkAnalysisSmall(b *testing.B) {
	benchmarkAnalysis(b, smallConfig)
}
