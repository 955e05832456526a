package scheduler

import "github.com/kestrelrt/kestrel/kernel/utils"

// detectCycle reports whether adding a node with the given dependency
// edges to the existing graph (nodes -> their dependencies) would create
// a cycle. It runs Kahn's algorithm over the union: if fewer nodes are
// processed than exist, a cycle is present.
//
// Adapted from the teacher's module dependency resolver, which ordered
// modules for load by the same technique; here the nodes are system ids
// within one phase rather than module ids within a binary's manifest.
func detectCycle(existing map[utils.ID][]utils.ID, newID utils.ID, newDeps []utils.ID) bool {
	graph := make(map[utils.ID][]utils.ID, len(existing)+1)
	for id, deps := range existing {
		graph[id] = deps
	}
	graph[newID] = newDeps

	indegree := make(map[utils.ID]int, len(graph))
	for id := range graph {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, dep := range graph[id] {
			if _, ok := indegree[dep]; !ok {
				indegree[dep] = 0
			}
		}
	}

	// An edge id -> dep means "id depends on dep", i.e. dep must run
	// first: dep gains an outgoing edge to id, id gains an indegree.
	adj := make(map[utils.ID][]utils.ID)
	for id, deps := range graph {
		for _, dep := range deps {
			adj[dep] = append(adj[dep], id)
			indegree[id]++
		}
	}

	queue := make([]utils.ID, 0, len(indegree))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range adj[n] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return processed != len(indegree)
}
