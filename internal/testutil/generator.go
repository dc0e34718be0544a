// Package testutil generates issue hierarchies for tests and benchmarks.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"tasklanes/internal/issueservice"
	"tasklanes/internal/issuestorage"
)

// IssueGenerator creates issues through a Service with various hierarchy
// patterns. Randomness comes from a seeded source so runs are repeatable.
type IssueGenerator struct {
	svc *issueservice.Service
	rng *rand.Rand
	ids []string
}

// NewIssueGenerator creates a new generator writing through svc.
func NewIssueGenerator(svc *issueservice.Service, seed uint64) *IssueGenerator {
	return &IssueGenerator{
		svc: svc,
		rng: rand.New(rand.NewPCG(seed, seed)),
		ids: make([]string, 0),
	}
}

// IDs returns all issue IDs created by this generator, in creation order.
func (g *IssueGenerator) IDs() []string {
	return g.ids
}

func (g *IssueGenerator) create(ctx context.Context, n issueservice.NewIssue) (string, error) {
	issue, err := g.svc.Create(ctx, n)
	if err != nil {
		return "", err
	}
	g.ids = append(g.ids, issue.ID)
	return issue.ID, nil
}

func (g *IssueGenerator) mode() issuestorage.ExecutionMode {
	if g.rng.IntN(2) == 0 {
		return issuestorage.ModeSeries
	}
	return issuestorage.ModeParallel
}

// GenerateTree creates a hierarchy of issues with the specified depth and
// breadth: breadth roots, each with breadth children, down to depth levels.
// Every parent gets a random execution mode.
func (g *IssueGenerator) GenerateTree(ctx context.Context, depth, breadth int) error {
	return g.generateTreeRecursive(ctx, "", depth, breadth)
}

func (g *IssueGenerator) generateTreeRecursive(ctx context.Context, parent string, depth, breadth int) error {
	if depth == 0 {
		return nil
	}
	for i := 0; i < breadth; i++ {
		typ := issuestorage.TypeTask
		if depth > 1 {
			typ = issuestorage.TypeEpic
		}
		id, err := g.create(ctx, issueservice.NewIssue{
			Title:         fmt.Sprintf("Level %d Issue %d", depth, i),
			Type:          typ,
			ExecutionMode: g.mode(),
			Parent:        parent,
		})
		if err != nil {
			return fmt.Errorf("create issue at depth %d: %w", depth, err)
		}
		if err := g.generateTreeRecursive(ctx, id, depth-1, breadth); err != nil {
			return err
		}
	}
	return nil
}

// GenerateDependencyChain creates a linear chain where each issue depends on
// the previous one, that is, each issue is the parent of the one before it.
// Returns the IDs from the leaf (no dependencies) to the root.
func (g *IssueGenerator) GenerateDependencyChain(ctx context.Context, length int) ([]string, error) {
	if length <= 0 {
		return nil, nil
	}

	ids := make([]string, length)
	for i := 0; i < length; i++ {
		id, err := g.create(ctx, issueservice.NewIssue{Title: fmt.Sprintf("Chain %d", i)})
		if err != nil {
			return nil, fmt.Errorf("create chain issue %d: %w", i, err)
		}
		ids[i] = id

		if i > 0 {
			if err := g.svc.AddParent(ctx, ids[i-1], id, issueservice.Position{}); err != nil {
				return nil, fmt.Errorf("make %s depend on %s: %w", id, ids[i-1], err)
			}
		}
	}
	return ids, nil
}

// GenerateDependencyDAG creates nodes issues and adds up to edges parent
// links. Edges only run from lower-indexed children to higher-indexed
// parents, so the result never has a cycle.
func (g *IssueGenerator) GenerateDependencyDAG(ctx context.Context, nodes, edges int) ([]string, error) {
	if nodes <= 0 {
		return nil, nil
	}

	ids := make([]string, nodes)
	for i := 0; i < nodes; i++ {
		id, err := g.create(ctx, issueservice.NewIssue{
			Title:         fmt.Sprintf("Node %d", i),
			ExecutionMode: g.mode(),
		})
		if err != nil {
			return nil, fmt.Errorf("create DAG node %d: %w", i, err)
		}
		ids[i] = id
	}

	for i := 0; i < edges; i++ {
		a := g.rng.IntN(nodes)
		b := g.rng.IntN(nodes)
		if a >= b {
			continue
		}
		err := g.svc.AddParent(ctx, ids[a], ids[b], issueservice.Position{})
		if err != nil && !errors.Is(err, issuestorage.ErrAlreadyExists) {
			return nil, fmt.Errorf("make %s depend on %s: %w", ids[b], ids[a], err)
		}
	}
	return ids, nil
}
