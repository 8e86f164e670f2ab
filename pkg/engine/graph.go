package engine

import (
	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
	"github.com/lexinelai/lexinel-oss/pkg/engine/stages"
)

// Router picks the next stage name from the merged state after its owning
// stage has run. Routers must be pure and total: any state maps to exactly
// one registered stage.
type Router func(state *domain.RequestState) string

// Graph is the static stage topology a request flows through. A stage has
// either a fixed edge, a router, or is terminal; never more than one.
type Graph struct {
	entry     string
	stages    map[string]runtime.Stage
	edges     map[string]string
	routers   map[string]Router
	terminals map[string]bool
}

// NewGraph builds the fixed compliance pipeline topology over the supplied
// stage implementations, keyed by their Name().
func NewGraph(stageList []runtime.Stage) *Graph {
	byName := make(map[string]runtime.Stage, len(stageList))
	for _, s := range stageList {
		byName[s.Name()] = s
	}

	return &Graph{
		entry:  stages.NameScreen,
		stages: byName,
		edges: map[string]string{
			stages.NameRetrieveContext: stages.NameScoreRisk,
			stages.NameDraftReport:     stages.NameNotify,
		},
		routers: map[string]Router{
			stages.NameScreen: func(s *domain.RequestState) string {
				if s.IsBlocked {
					return stages.NameRespondBlocked
				}
				return stages.NameRetrieveContext
			},
			stages.NameScoreRisk: func(s *domain.RequestState) string {
				if s.RiskScore >= 0.5 {
					return stages.NameCheckViolations
				}
				return stages.NameRespondClean
			},
			stages.NameCheckViolations: func(s *domain.RequestState) string {
				if s.ViolationFound {
					return stages.NameDraftReport
				}
				return stages.NameRespondClean
			},
		},
		terminals: map[string]bool{
			stages.NameNotify:         true,
			stages.NameRespondClean:   true,
			stages.NameRespondBlocked: true,
		},
	}
}

// validate checks the topology once at construction: the entry exists, every
// edge and router target is registered, every stage is reachable from the
// entry, and every non-terminal stage has a way forward.
func (g *Graph) validate() error {
	if _, ok := g.stages[g.entry]; !ok {
		return domain.NewConfigurationError("entry stage %q not registered", g.entry)
	}

	for from, to := range g.edges {
		if _, ok := g.stages[from]; !ok {
			return domain.NewConfigurationError("edge source %q not registered", from)
		}
		if _, ok := g.stages[to]; !ok {
			return domain.NewConfigurationError("edge %q -> %q targets unregistered stage", from, to)
		}
		if g.terminals[from] {
			return domain.NewConfigurationError("terminal stage %q has outgoing edge", from)
		}
	}
	for from := range g.routers {
		if _, ok := g.stages[from]; !ok {
			return domain.NewConfigurationError("router source %q not registered", from)
		}
		if _, hasEdge := g.edges[from]; hasEdge {
			return domain.NewConfigurationError("stage %q has both a fixed edge and a router", from)
		}
		if g.terminals[from] {
			return domain.NewConfigurationError("terminal stage %q has a router", from)
		}
		for _, to := range g.routerTargets(from) {
			if _, ok := g.stages[to]; !ok {
				return domain.NewConfigurationError("router on %q targets unregistered stage %q", from, to)
			}
		}
	}

	for name := range g.stages {
		if g.terminals[name] {
			continue
		}
		_, hasEdge := g.edges[name]
		_, hasRouter := g.routers[name]
		if !hasEdge && !hasRouter {
			return domain.NewConfigurationError("stage %q is neither terminal nor has a successor", name)
		}
	}

	reachable := g.reachableFrom(g.entry)
	for name := range g.stages {
		if !reachable[name] {
			return domain.NewConfigurationError("stage %q unreachable from entry", name)
		}
	}
	return nil
}

// reachableFrom walks fixed edges and all router alternatives.
func (g *Graph) reachableFrom(start string) map[string]bool {
	seen := map[string]bool{}
	queue := []string{start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		if to, ok := g.edges[name]; ok {
			queue = append(queue, to)
		}
		if _, ok := g.routers[name]; ok {
			queue = append(queue, g.routerTargets(name)...)
		}
	}
	return seen
}

// routerTargets enumerates the possible targets of a stage's router by
// probing it with the state shapes that drive each branch. The three routers
// are pure functions of IsBlocked, RiskScore and ViolationFound.
func (g *Graph) routerTargets(name string) []string {
	router := g.routers[name]
	probes := []domain.RequestState{
		{},
		{IsBlocked: true},
		{RiskScore: 1.0},
		{ViolationFound: true},
	}
	seen := map[string]bool{}
	var targets []string
	for i := range probes {
		target := router(&probes[i])
		if !seen[target] {
			seen[target] = true
			targets = append(targets, target)
		}
	}
	return targets
}

// next resolves the successor of a completed stage; ok is false at terminals.
func (g *Graph) next(name string, state *domain.RequestState) (string, bool) {
	if g.terminals[name] {
		return "", false
	}
	if to, ok := g.edges[name]; ok {
		return to, true
	}
	if router, ok := g.routers[name]; ok {
		return router(state), true
	}
	return "", false
}
