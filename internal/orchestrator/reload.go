package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"warden/internal/api"
	"warden/internal/dependency"
	"warden/internal/registry"
	"warden/pkg/logging"
)

// reload asks the definition source for the current set and applies it.
func (o *Orchestrator) reload() error {
	if o.source == nil {
		return fmt.Errorf("no definition source configured")
	}
	ctx := o.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	defs, err := o.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load service definitions: %w", err)
	}
	return o.applyDefinitions(defs)
}

// applyDefinitions swaps in a new definition set. The graph is validated
// first; on error nothing changes. Running services whose definition
// changed are restarted, removed ones are stopped and dropped.
func (o *Orchestrator) applyDefinitions(defs []api.ServiceDefinition) error {
	graph, err := dependency.FromDefinitions(defs)
	if err != nil {
		return err
	}
	ids, err := graph.Levels()
	if err != nil {
		return err
	}
	next := withImplicitTargets(defs, graph)

	changes := registry.Diff(o.definitions(), next)

	for _, name := range changes.Removed {
		inst := o.lookup(name)
		if inst == nil {
			continue
		}
		if inst.running() {
			inst.removeAfterStop = true
			o.stopInstance(inst, "definition removed")
			continue
		}
		o.removeInstance(inst)
	}

	for _, def := range changes.Changed {
		inst := o.lookup(def.Name)
		if inst == nil {
			continue
		}
		d := def
		switch inst.State() {
		case api.StateStopping:
			inst.nextDef = &d
		case api.StateStarting, api.StateActive, api.StateRestarting:
			inst.nextDef = &d
			inst.restartAfterStop = true
			o.stopInstance(inst, "definition changed")
		default:
			inst.Def = d
			inst.backoff = nil
		}
	}

	for _, def := range changes.Added {
		inst := o.addInstance(def)
		if o.booting || o.bootDone {
			inst.pending = true
		}
	}

	o.graph = graph
	o.levels = make([][]string, len(ids))
	o.levelOf = make(map[string]int)
	for l, level := range ids {
		for _, id := range level {
			o.levels[l] = append(o.levels[l], string(id))
			o.levelOf[string(id)] = l
		}
	}
	if o.booting {
		o.bootLevel = 0
	}

	logging.Info("Orchestrator", "Loaded %d definitions: %d added, %d changed, %d removed",
		len(next), len(changes.Added), len(changes.Changed), len(changes.Removed))
	return nil
}

// definitions returns the definitions of all live instances. A pending
// replacement counts as the current definition.
func (o *Orchestrator) definitions() []api.ServiceDefinition {
	var defs []api.ServiceDefinition
	for _, inst := range o.instances {
		if inst == nil || inst.removeAfterStop {
			continue
		}
		if inst.nextDef != nil {
			defs = append(defs, *inst.nextDef)
			continue
		}
		defs = append(defs, inst.Def)
	}
	return defs
}

// withImplicitTargets adds a definition for every virtual graph node that
// has none.
func withImplicitTargets(defs []api.ServiceDefinition, g *dependency.Graph) []api.ServiceDefinition {
	known := make(map[string]bool, len(defs))
	for _, d := range defs {
		known[d.Name] = true
	}
	out := append([]api.ServiceDefinition(nil), defs...)
	for _, id := range g.IDs() {
		if !known[string(id)] {
			out = append(out, api.TargetDefinition(string(id)))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
