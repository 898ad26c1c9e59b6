// SPDX-License-Identifier: MPL-2.0

package hookenv

import (
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/rtvm/rtvm/internal/toolset"
)

// Plan is the minimal change that moves a shell from its current
// environment to the target one.
type Plan struct {
	// Set lists assignments in order. PATH and the marker come last.
	Set []Var
	// Unset lists variables to remove.
	Unset []string
	// Prior is the state decoded from the marker; empty when absent or corrupt.
	Prior State
	// State is the state recorded in the new marker.
	State State
}

// IsEmpty reports whether the plan changes nothing.
func (p Plan) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Unset) == 0
}

// Changes returns the tools activated and deactivated by the plan.
func (p Plan) Changes() (added, removed []string) {
	for _, tool := range p.State.Tools {
		if !slices.Contains(p.Prior.Tools, tool) {
			added = append(added, tool)
		}
	}
	for _, tool := range p.Prior.Tools {
		if !slices.Contains(p.State.Tools, tool) {
			removed = append(removed, tool)
		}
	}
	return added, removed
}

// Reconcile diffs the prior state recorded in environ against target.
//
// Variables the prior state set but target does not are restored to the
// shell's own value when one was recorded, and unset otherwise. Variables
// that differ from target are set. The prior PATH prefix is removed wherever
// it now sits and the new one is put in front, leaving every other entry
// where the shell put it. A marker that cannot be decoded is treated as
// absent. tools is recorded for status output only.
func Reconcile(environ []string, target *toolset.EnvPatch, tools []string) Plan {
	env := envMap(environ)
	prior := priorState(env)

	next := State{Tools: slices.Clone(tools)}
	if target != nil {
		next.Path = slices.Clone(target.PathPrepend)
	}

	orig := make(map[string]string, len(prior.Orig))
	for _, v := range prior.Orig {
		orig[v.Name] = v.Value
	}
	managed := make(map[string]bool, len(prior.Vars))
	for _, v := range prior.Vars {
		managed[v.Name] = true
	}

	plan := Plan{Prior: prior}
	wanted := map[string]bool{}
	for _, name := range target.Keys() {
		value, _ := target.Get(name)
		wanted[name] = true
		next.Vars = append(next.Vars, Var{Name: name, Value: value})

		cur, exists := env[name]
		if managed[name] {
			if o, ok := orig[name]; ok {
				next.Orig = append(next.Orig, Var{Name: name, Value: o})
			}
		} else if exists {
			next.Orig = append(next.Orig, Var{Name: name, Value: cur})
		}
		if !exists || cur != value {
			plan.Set = append(plan.Set, Var{Name: name, Value: value})
		}
	}

	for _, v := range prior.Vars {
		if wanted[v.Name] {
			continue
		}
		cur, exists := env[v.Name]
		if o, ok := orig[v.Name]; ok {
			if !exists || cur != o {
				plan.Set = append(plan.Set, Var{Name: v.Name, Value: o})
			}
			continue
		}
		if exists {
			plan.Unset = append(plan.Unset, v.Name)
		}
	}

	curPath := env["PATH"]
	if newPath := rebuildPath(curPath, prior.Path, next.Path); newPath != curPath {
		plan.Set = append(plan.Set, Var{Name: "PATH", Value: newPath})
	}

	plan.State = next
	curMarker, hasMarker := env[MarkerVar]
	if next.IsEmpty() {
		if hasMarker {
			plan.Unset = append(plan.Unset, MarkerVar)
		}
		return plan
	}
	marker, err := Encode(next)
	if err != nil {
		slog.Warn("cannot record hook state", "error", err)
		return plan
	}
	if !hasMarker || marker != curMarker {
		plan.Set = append(plan.Set, Var{Name: MarkerVar, Value: marker})
	}
	return plan
}

// Deactivate plans the removal of every effect recorded in environ.
func Deactivate(environ []string) Plan {
	return Reconcile(environ, nil, nil)
}

// Apply returns environ with plan applied. Existing variables keep their
// position; new ones are appended in plan order.
func Apply(environ []string, plan Plan) []string {
	set := make(map[string]string, len(plan.Set))
	for _, v := range plan.Set {
		set[v.Name] = v.Value
	}

	out := make([]string, 0, len(environ)+len(plan.Set))
	done := map[string]bool{}
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if slices.Contains(plan.Unset, name) {
			continue
		}
		if value, ok := set[name]; ok {
			out = append(out, name+"="+value)
			done[name] = true
			continue
		}
		out = append(out, kv)
	}
	for _, v := range plan.Set {
		if !done[v.Name] {
			out = append(out, v.Name+"="+v.Value)
			done[v.Name] = true
		}
	}
	return out
}

func priorState(env map[string]string) State {
	marker, ok := env[MarkerVar]
	if !ok || marker == "" {
		return State{}
	}
	s, err := Decode(marker)
	if err != nil {
		slog.Warn("ignoring unreadable hook state", "error", err)
		return State{}
	}
	return s
}

// rebuildPath removes one occurrence of each prior directory from current
// and puts next in front.
func rebuildPath(current string, prior, next []string) string {
	sep := string(os.PathListSeparator)
	var entries []string
	if current != "" {
		entries = strings.Split(current, sep)
	}
	for _, dir := range prior {
		if i := slices.Index(entries, dir); i >= 0 {
			entries = slices.Delete(entries, i, i+1)
		}
	}
	return strings.Join(append(slices.Clone(next), entries...), sep)
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok {
			env[name] = value
		}
	}
	return env
}
