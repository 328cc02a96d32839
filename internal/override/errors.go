package override

import (
	"fmt"
	"strings"

	"github.com/kingrea/layoutweave/internal/slot"
)

// Conflict describes one slot whose winner could not be determined.
type Conflict struct {
	Slot     slot.ID
	Sequence int
	Modules  []string
}

func (c Conflict) String() string {
	return fmt.Sprintf("slot %s: modules %s share sequence %d and neither depends on the other",
		c.Slot, strings.Join(c.Modules, ", "), c.Sequence)
}

// ConfigurationError reports unresolvable ties. It is fatal to resolution and
// must reach the operator.
type ConfigurationError struct {
	Conflicts []Conflict
}

func (e *ConfigurationError) Error() string {
	if e == nil || len(e.Conflicts) == 0 {
		return "override: configuration error"
	}
	if len(e.Conflicts) == 1 {
		return "override: ambiguous template override: " + e.Conflicts[0].String()
	}
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return fmt.Sprintf("override: %d ambiguous template overrides: %s", len(e.Conflicts), strings.Join(parts, "; "))
}

// UnknownSlotError marks a declaration aimed at a slot the host does not
// know. Resolution skips it and keeps going.
type UnknownSlotError struct {
	Slot   slot.ID
	Module string
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("override: module %s targets unknown slot %s", e.Module, e.Slot)
}
