package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/fam/internal/ir"
)

// CycleWarning describes accounts whose same-year references form a loop.
//
// Whether a loop matters depends on which accounts a compute reaches, so
// validation only warns; Compute fails with BUILD_CYCLE when it meets one.
type CycleWarning struct {
	Path    []string `json:"path"` // first account repeated at the end
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles reports one warning per group of rules that read each
// other in the same year. Prior-year references never loop.
//
// Groups are found and named in rule declaration order, and each path is
// the shortest loop through the group's first declared account.
func AnalyzeCycles(rules *ir.RuleSet) []CycleWarning {
	warnings := []CycleWarning{}
	if rules.Len() == 0 {
		return warnings
	}

	edges := sameYearEdges(rules)
	reach := make(map[string]map[string]bool, len(edges))
	for _, name := range rules.Names() {
		reach[name] = reachable(edges, name)
	}

	grouped := make(map[string]bool)
	for _, name := range rules.Names() {
		if grouped[name] || !reach[name][name] {
			continue
		}
		group := make(map[string]bool)
		for other := range reach[name] {
			if reach[other][name] {
				group[other] = true
				grouped[other] = true
			}
		}
		warnings = append(warnings, loopWarning(shortestLoop(edges, name, group)))
	}
	return warnings
}

// sameYearEdges maps each ruled account to the accounts it reads in the
// current period.
func sameYearEdges(rules *ir.RuleSet) map[string][]string {
	edges := make(map[string][]string, rules.Len())
	for _, name := range rules.Names() {
		rule, _ := rules.Get(name)
		var out []string
		for _, ref := range rule.References() {
			if !ref.Period.IsPrevious() {
				out = append(out, ref.Account)
			}
		}
		edges[name] = out
	}
	return edges
}

// reachable returns every account reachable from start by one or more
// edges. start is included only when it lies on a loop.
func reachable(edges map[string][]string, start string) map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string(nil), edges[start]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, edges[next]...)
	}
	return seen
}

// shortestLoop finds the shortest path from start back to itself using
// only accounts in group.
func shortestLoop(edges map[string][]string, start string, group map[string]bool) []string {
	parent := map[string]string{}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if !group[next] {
				continue
			}
			if next == start {
				path := []string{start}
				for at := cur; at != start; at = parent[at] {
					path = append(path, at)
				}
				path = append(path, start)
				// Collected back to front; the endpoints are both start.
				for i, j := 1, len(path)-2; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			if _, ok := parent[next]; ok {
				continue
			}
			parent[next] = cur
			queue = append(queue, next)
		}
	}
	return []string{start, start}
}

func loopWarning(path []string) CycleWarning {
	w := CycleWarning{Path: path, Level: "warning"}
	if len(path) == 2 {
		w.Message = fmt.Sprintf("Self-referencing rule detected: %s \u2192 %s", path[0], path[1])
	} else {
		w.Message = "Potential cycle detected: " + strings.Join(path, " \u2192 ")
	}
	return w
}
