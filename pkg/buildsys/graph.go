package buildsys

import (
	"sort"

	"github.com/gammazero/toposort"
	"github.com/rotisserie/eris"
)

// Graph is a validated, immutable set of tasks.
type Graph struct {
	tasks TaskList
	order []string
	index map[string]int
}

// NewGraph validates the task declarations and computes a global topological order.
// Unknown dependencies and cycles are rejected here, before anything can run.
func NewGraph(tasks TaskList) (*Graph, error) {
	names := sortedNames(tasks)

	for _, name := range names {
		task := tasks[name]
		if name == "" {
			return nil, eris.New("found a task without a name")
		}
		if task == nil {
			return nil, eris.Errorf("task %s is nil", name)
		}
		if task.Short != name {
			return nil, eris.Errorf("task %s is registered as %s", task.Short, name)
		}

		for _, dep := range task.Deps {
			if dep == name {
				return nil, CycleError{Path: []string{name, name}}
			}

			if _, ok := tasks[dep]; !ok {
				return nil, eris.Errorf("task %s depends on unknown task %s", name, dep)
			}
		}
	}

	edges := make([]toposort.Edge, 0, len(names))
	for _, name := range names {
		deps := append([]string(nil), tasks[name].Deps...)
		if len(deps) == 0 {
			// make sure tasks without dependencies show up in the result
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}

		sort.Strings(deps)
		for _, dep := range deps {
			// (dep, name): dep has to run before name
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		if cycle := findCycle(tasks, names); cycle != nil {
			return nil, CycleError{Path: cycle}
		}
		return nil, eris.Wrap(err, "failed to sort tasks")
	}

	order := make([]string, 0, len(names))
	index := make(map[string]int, len(names))
	for _, id := range sorted {
		if id == nil {
			continue
		}

		name := id.(string)
		if _, seen := index[name]; seen {
			continue
		}
		index[name] = len(order)
		order = append(order, name)
	}

	if len(order) != len(names) {
		return nil, eris.Errorf("topological sort lost %d tasks", len(names)-len(order))
	}

	return &Graph{
		tasks: tasks,
		order: order,
		index: index,
	}, nil
}

// findCycle returns the first dependency cycle found by a depth-first search, or nil.
func findCycle(tasks TaskList, names []string) []string {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(names))
	stack := []string{}

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = visiting
		stack = append(stack, name)

		deps := append([]string(nil), tasks[name].Deps...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				for idx, item := range stack {
					if item == dep {
						cycle := append([]string(nil), stack[idx:]...)
						return append(cycle, dep)
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range names {
		if state[name] == unvisited {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// Plan returns the transitive dependency closure of the given targets in execution order.
func (g *Graph) Plan(targets ...string) ([]*Task, error) {
	if len(targets) == 0 {
		return nil, eris.New("no target given")
	}

	included := make(map[string]bool)
	var collect func(name string)
	collect = func(name string) {
		if included[name] {
			return
		}

		included[name] = true
		for _, dep := range g.tasks[name].Deps {
			collect(dep)
		}
	}

	for _, target := range targets {
		if _, ok := g.tasks[target]; !ok {
			return nil, eris.Errorf("Task %s not found", target)
		}
		collect(target)
	}

	plan := make([]*Task, 0, len(included))
	for _, name := range g.order {
		if included[name] {
			plan = append(plan, g.tasks[name])
		}
	}

	return plan, nil
}

// Get returns the named task.
func (g *Graph) Get(name string) (*Task, bool) {
	task, ok := g.tasks[name]
	return task, ok
}

// Order returns the names of all tasks in topological order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Visible returns all tasks that aren't hidden, sorted by name.
func (g *Graph) Visible() []*Task {
	result := make([]*Task, 0, len(g.tasks))
	for _, name := range sortedNames(g.tasks) {
		if task := g.tasks[name]; !task.Hidden {
			result = append(result, task)
		}
	}

	return result
}

func sortedNames(tasks TaskList) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
