package graph

import (
	"strings"

	"tasklanes/internal/issuestorage"
)

// DependencyCycle is a closed loop of issue IDs; the first ID is repeated at
// the end, e.g. ["a", "b", "a"].
type DependencyCycle []string

// ValidationResult is the outcome of ValidateCycles. Cycles being present is
// a normal result, not an error.
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Cycles  []DependencyCycle `json:"cycles"`
}

const (
	white = iota
	gray
	black
)

// ValidateCycles looks for loops in the parent references of issues. An issue
// depends on each of its parents; references to IDs outside issues are
// ignored.
//
// It runs a white/gray/black depth-first search from every issue in input
// order. Reaching a gray node closes a cycle made of the current path from
// that node onward. Cycles found from different entry points or rotations are
// reported once.
func ValidateCycles(issues []*issuestorage.Issue) ValidationResult {
	index, order := indexIssues(issues)

	deps := func(id string) []string {
		issue := index[id]
		out := make([]string, 0, len(issue.ParentIssues.Value))
		for _, ref := range issue.ParentIssues.Value {
			parentID := issuestorage.NormalizeID(ref.ParentIssue)
			if _, ok := index[parentID]; ok {
				out = append(out, parentID)
			}
		}
		return out
	}

	type frame struct {
		id   string
		deps []string
		next int
	}

	color := make(map[string]int, len(order))
	seen := make(map[string]bool)
	result := ValidationResult{IsValid: true}

	for _, start := range order {
		if color[start] != white {
			continue
		}

		color[start] = gray
		stack := []frame{{id: start, deps: deps(start)}}
		onStack := map[string]int{start: 0}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(top.deps) {
				color[top.id] = black
				delete(onStack, top.id)
				stack = stack[:len(stack)-1]
				continue
			}

			dep := top.deps[top.next]
			top.next++

			switch color[dep] {
			case white:
				color[dep] = gray
				onStack[dep] = len(stack)
				stack = append(stack, frame{id: dep, deps: deps(dep)})
			case gray:
				cycle := make(DependencyCycle, 0, len(stack)-onStack[dep]+1)
				for _, f := range stack[onStack[dep]:] {
					cycle = append(cycle, f.id)
				}
				cycle = append(cycle, dep)

				sig := cycleSignature(cycle)
				if !seen[sig] {
					seen[sig] = true
					result.Cycles = append(result.Cycles, cycle)
				}
			}
		}
	}

	result.IsValid = len(result.Cycles) == 0
	return result
}

// WouldCreateCycle reports whether making parentID a parent of childID would
// close a loop. A self-reference always does. Otherwise it walks upward from
// parentID along existing parent edges looking for childID.
func WouldCreateCycle(parentID, childID string, issues []*issuestorage.Issue) bool {
	parentID = issuestorage.NormalizeID(parentID)
	childID = issuestorage.NormalizeID(childID)
	if parentID == childID {
		return true
	}

	index, _ := indexIssues(issues)
	visited := make(map[string]bool)
	queue := []string{parentID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		issue, ok := index[current]
		if !ok {
			continue
		}
		for _, ref := range issue.ParentIssues.Value {
			next := issuestorage.NormalizeID(ref.ParentIssue)
			if next == childID {
				return true
			}
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}

	return false
}

// cycleSignature identifies a cycle independent of where it was entered: the
// smallest rotation of its lower-cased members, comma-joined.
func cycleSignature(cycle DependencyCycle) string {
	members := make([]string, 0, len(cycle))
	for _, id := range cycle[:len(cycle)-1] {
		members = append(members, strings.ToLower(id))
	}

	best := ""
	for i := range members {
		rotated := strings.Join(append(append([]string(nil), members[i:]...), members[:i]...), ",")
		if i == 0 || rotated < best {
			best = rotated
		}
	}
	return best
}

// indexIssues maps normalized IDs to issues, first occurrence wins, and
// returns the IDs in input order.
func indexIssues(issues []*issuestorage.Issue) (map[string]*issuestorage.Issue, []string) {
	index := make(map[string]*issuestorage.Issue, len(issues))
	order := make([]string, 0, len(issues))
	for _, issue := range issues {
		if issue == nil {
			continue
		}
		id := issuestorage.NormalizeID(issue.ID)
		if id == "" {
			continue
		}
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = issue
		order = append(order, id)
	}
	return index, order
}
