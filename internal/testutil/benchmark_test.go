package testutil

import (
	"context"
	"testing"

	"tasklanes/internal/graph"
)

func benchmarkGraph(b *testing.B, depth, breadth int) *graph.IssueGraph {
	b.Helper()
	ctx := context.Background()
	svc := setupTestService(b)
	if err := NewIssueGenerator(svc, 42).GenerateTree(ctx, depth, breadth); err != nil {
		b.Fatal(err)
	}
	g, err := svc.Graph(ctx)
	if err != nil {
		b.Fatal(err)
	}
	return g
}

func BenchmarkNextIssues(b *testing.B) {
	g := benchmarkGraph(b, 4, 4)
	b.ResetTimer()
	for b.Loop() {
		graph.NextIssues(g, "")
	}
}

func BenchmarkBuildTaskGraph(b *testing.B) {
	g := benchmarkGraph(b, 4, 4)
	b.ResetTimer()
	for b.Loop() {
		graph.BuildTaskGraph(g)
	}
}

func BenchmarkValidateCycles(b *testing.B) {
	ctx := context.Background()
	svc := setupTestService(b)
	if _, err := NewIssueGenerator(svc, 42).GenerateDependencyDAG(ctx, 200, 400); err != nil {
		b.Fatal(err)
	}
	issues, err := svc.Snapshot(ctx)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for b.Loop() {
		graph.ValidateCycles(issues)
	}
}
