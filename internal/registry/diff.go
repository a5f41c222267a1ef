package registry

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"warden/internal/api"
)

// Changes is the difference between two definition sets.
type Changes struct {
	Added     []api.ServiceDefinition
	Changed   []api.ServiceDefinition // the new definitions
	Removed   []string
	Unchanged []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

var defOptions = cmp.Options{cmpopts.EquateEmpty()}

// Equal reports whether two definitions are equivalent. Nil and empty
// collections compare equal.
func Equal(a, b api.ServiceDefinition) bool {
	return cmp.Equal(a, b, defOptions)
}

// Describe returns a human readable diff of two definitions.
func Describe(a, b api.ServiceDefinition) string {
	return cmp.Diff(a, b, defOptions)
}

// Diff compares the current definitions with the next set by name. All
// result lists are sorted by name.
func Diff(current, next []api.ServiceDefinition) Changes {
	old := make(map[string]api.ServiceDefinition, len(current))
	for _, d := range current {
		old[d.Name] = d
	}

	var c Changes
	seen := make(map[string]bool, len(next))
	for _, d := range next {
		seen[d.Name] = true
		prev, ok := old[d.Name]
		switch {
		case !ok:
			c.Added = append(c.Added, d)
		case Equal(prev, d):
			c.Unchanged = append(c.Unchanged, d.Name)
		default:
			c.Changed = append(c.Changed, d)
		}
	}
	for name := range old {
		if !seen[name] {
			c.Removed = append(c.Removed, name)
		}
	}

	sortDefs(c.Added)
	sortDefs(c.Changed)
	sort.Strings(c.Removed)
	sort.Strings(c.Unchanged)
	return c
}

func sortDefs(defs []api.ServiceDefinition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
}
