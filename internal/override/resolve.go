package override

import (
	"sort"

	"github.com/kingrea/layoutweave/internal/slot"
)

// Result is the outcome of a resolution. When resolution fails only Ignored
// is populated.
type Result struct {
	Mapping Mapping
	// Ignored lists declarations aimed at slots outside the catalog.
	Ignored []*UnknownSlotError
}

// Resolve picks one winner per catalog slot from the complete declaration
// set. It does not modify its inputs and depends on nothing else, so equal
// inputs always give equal mappings.
func Resolve(catalog *slot.Catalog, declarations []Declaration, graph Graph) (Result, error) {
	if catalog == nil {
		catalog = slot.NewCatalog()
	}
	groups := make(map[slot.ID][]Declaration)
	var ignored []*UnknownSlotError
	for _, decl := range declarations {
		if _, ok := catalog.Lookup(decl.Slot); !ok {
			ignored = append(ignored, &UnknownSlotError{Slot: decl.Slot, Module: decl.Module})
			continue
		}
		groups[decl.Slot] = append(groups[decl.Slot], decl)
	}
	sort.Slice(ignored, func(i, j int) bool {
		if ignored[i].Slot != ignored[j].Slot {
			return ignored[i].Slot < ignored[j].Slot
		}
		return ignored[i].Module < ignored[j].Module
	})

	entries := make(map[slot.ID]Entry, catalog.Len())
	var conflicts []Conflict
	for _, id := range catalog.IDs() {
		def, _ := catalog.Lookup(id)
		group := groups[id]
		if len(group) == 0 {
			entries[id] = Entry{
				Slot:     id,
				Fragment: Fragment{Template: def.DefaultTemplate},
				Default:  true,
			}
			continue
		}
		winner, conflict, ok := pickWinner(id, group, graph)
		if !ok {
			conflicts = append(conflicts, conflict)
			continue
		}
		entries[id] = Entry{
			Slot:     id,
			Fragment: winner.Fragment,
			Module:   winner.Module,
			Sequence: winner.Sequence,
		}
	}
	if len(conflicts) > 0 {
		return Result{Ignored: ignored}, &ConfigurationError{Conflicts: conflicts}
	}
	return Result{Mapping: Mapping{entries: entries}, Ignored: ignored}, nil
}

func pickWinner(id slot.ID, group []Declaration, graph Graph) (Declaration, Conflict, bool) {
	top := group[0].Sequence
	for _, decl := range group[1:] {
		if decl.Sequence > top {
			top = decl.Sequence
		}
	}
	var tied []Declaration
	for _, decl := range group {
		if decl.Sequence == top {
			tied = append(tied, decl)
		}
	}
	if len(tied) == 1 {
		return tied[0], Conflict{}, true
	}
	var winners []Declaration
	for i, candidate := range tied {
		if loadsAfterAll(candidate, i, tied, graph) {
			winners = append(winners, candidate)
		}
	}
	if len(winners) == 1 {
		return winners[0], Conflict{}, true
	}
	modules := make([]string, len(tied))
	for i, decl := range tied {
		modules[i] = decl.Module
	}
	sort.Strings(modules)
	return Declaration{}, Conflict{Slot: id, Sequence: top, Modules: modules}, false
}

// loadsAfterAll reports whether candidate depends on the module of every
// other tied declaration.
func loadsAfterAll(candidate Declaration, index int, tied []Declaration, graph Graph) bool {
	for j, other := range tied {
		if j == index {
			continue
		}
		if !graph.DependsOn(candidate.Module, other.Module) {
			return false
		}
	}
	return true
}
