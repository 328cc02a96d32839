// Package slot defines the named document regions that add-on modules may
// override. The built-in set is closed; hosts can extend a Catalog with extra
// slot IDs so newer modules keep loading against older hosts.
package slot

import (
	"fmt"
	"sort"
	"strings"
)

// ID names a region of a rendered business document.
type ID string

const (
	Layout       ID = "document-layout"
	Header       ID = "document-header"
	Footer       ID = "document-footer"
	TitleBlock   ID = "title-block"
	AddressBlock ID = "address-block"
)

// Builtins lists the slots every host recognizes, in display order.
var Builtins = []ID{Layout, Header, Footer, TitleBlock, AddressBlock}

var builtinDefaults = map[ID]string{
	Layout:       "web.external_layout_standard",
	Header:       "web.external_layout_standard_header",
	Footer:       "web.external_layout_standard_footer",
	TitleBlock:   "web.external_layout_standard_title",
	AddressBlock: "web.address_layout",
}

// Parse normalizes a raw slot name and reports whether it is built in.
func Parse(raw string) (ID, bool) {
	id := ID(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := builtinDefaults[id]
	return id, ok
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Definition pairs a slot with the host template used when no module
// overrides it.
type Definition struct {
	ID              ID
	DefaultTemplate string
	Builtin         bool
}

// Catalog is the set of slots a host recognizes.
type Catalog struct {
	defs map[ID]Definition
}

// NewCatalog returns a catalog holding only the built-in slots.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[ID]Definition, len(builtinDefaults))}
	for id, tmpl := range builtinDefaults {
		c.defs[id] = Definition{ID: id, DefaultTemplate: tmpl, Builtin: true}
	}
	return c
}

// Extend adds a host-specific slot. Built-ins and previously added slots
// cannot be redefined.
func (c *Catalog) Extend(raw, defaultTemplate string) error {
	id, _ := Parse(raw)
	if id == "" {
		return fmt.Errorf("slot: id is required")
	}
	tmpl := strings.TrimSpace(defaultTemplate)
	if tmpl == "" {
		return fmt.Errorf("slot: default template is required for %s", id)
	}
	if _, exists := c.defs[id]; exists {
		return fmt.Errorf("slot: %s already defined", id)
	}
	c.defs[id] = Definition{ID: id, DefaultTemplate: tmpl}
	return nil
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id ID) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	def, ok := c.defs[id]
	return def, ok
}

// IDs returns every known slot sorted lexically.
func (c *Catalog) IDs() []ID {
	if c == nil {
		return nil
	}
	ids := make([]ID, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len reports how many slots the catalog knows.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.defs)
}
