package override

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kingrea/layoutweave/internal/slot"
)

// Fragment is an opaque handle to template content supplied by a module.
// Built-in defaults carry an empty Module.
type Fragment struct {
	Module   string `json:"module,omitempty" cbor:"1,keyasint,omitempty"`
	Template string `json:"template" cbor:"2,keyasint"`
	File     string `json:"file,omitempty" cbor:"3,keyasint,omitempty"`
}

// Declaration is a module's registered intent to supply a fragment for a slot.
type Declaration struct {
	Slot     slot.ID  `json:"slot"`
	Module   string   `json:"module"`
	Sequence int      `json:"sequence"`
	Fragment Fragment `json:"fragment"`
}

func (d Declaration) less(other Declaration) bool {
	if d.Slot != other.Slot {
		return d.Slot < other.Slot
	}
	if d.Module != other.Module {
		return d.Module < other.Module
	}
	if d.Sequence != other.Sequence {
		return d.Sequence < other.Sequence
	}
	if d.Fragment.Template != other.Fragment.Template {
		return d.Fragment.Template < other.Fragment.Template
	}
	return d.Fragment.File < other.Fragment.File
}

// Set owns the declarations and module dependency edges of every loaded
// module. It replaces a process-wide registry: callers pass a Set to the
// resolver explicitly.
type Set struct {
	mu           sync.RWMutex
	declarations []Declaration
	depends      map[string][]string
}

// NewSet returns an empty declaration set.
func NewSet() *Set {
	return &Set{depends: map[string][]string{}}
}

// RegisterModule records the modules name depends on. Calling it again for
// the same module replaces the previous edges.
func (s *Set) RegisterModule(name string, depends []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("override: module name is required")
	}
	deps := make([]string, 0, len(depends))
	for _, dep := range depends {
		if trimmed := strings.TrimSpace(dep); trimmed != "" && trimmed != name {
			deps = append(deps, trimmed)
		}
	}
	sort.Strings(deps)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depends[name] = deps
	return nil
}

// RegisterOverride adds one declaration. Registration order has no effect on
// resolution.
func (s *Set) RegisterOverride(id slot.ID, module string, sequence int, fragment Fragment) error {
	module = strings.TrimSpace(module)
	if module == "" {
		return fmt.Errorf("override: module name is required")
	}
	if strings.TrimSpace(string(id)) == "" {
		return fmt.Errorf("override: %s: slot is required", module)
	}
	if strings.TrimSpace(fragment.Template) == "" {
		return fmt.Errorf("override: %s: template is required for slot %s", module, id)
	}
	fragment.Module = module
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declarations = append(s.declarations, Declaration{
		Slot:     id,
		Module:   module,
		Sequence: sequence,
		Fragment: fragment,
	})
	if _, ok := s.depends[module]; !ok {
		s.depends[module] = nil
	}
	return nil
}

// UnregisterModule drops every declaration and dependency record of module
// and returns how many declarations were removed.
func (s *Set) UnregisterModule(module string) int {
	module = strings.TrimSpace(module)
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.declarations[:0]
	removed := 0
	for _, decl := range s.declarations {
		if decl.Module == module {
			removed++
			continue
		}
		kept = append(kept, decl)
	}
	for i := len(kept); i < len(s.declarations); i++ {
		s.declarations[i] = Declaration{}
	}
	s.declarations = kept
	delete(s.depends, module)
	return removed
}

// Declarations returns a sorted copy of every declaration.
func (s *Set) Declarations() []Declaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Declaration, len(s.declarations))
	copy(out, s.declarations)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// Graph returns a copy of the dependency edges.
func (s *Set) Graph() Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := make(Graph, len(s.depends))
	for name, deps := range s.depends {
		g[name] = append([]string(nil), deps...)
	}
	return g
}

// Modules returns the sorted names of every registered module.
func (s *Set) Modules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.depends))
	for name := range s.depends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Graph maps a module to the modules it directly depends on.
type Graph map[string][]string

// DependsOn reports whether module reaches target through one or more
// dependency edges.
func (g Graph) DependsOn(module, target string) bool {
	if module == target {
		return false
	}
	visited := map[string]bool{module: true}
	stack := append([]string(nil), g[module]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if next == target {
			return true
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		stack = append(stack, g[next]...)
	}
	return false
}
