package override

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/kingrea/layoutweave/internal/slot"
)

// Entry is the active fragment for one slot.
type Entry struct {
	Slot     slot.ID  `json:"slot" cbor:"1,keyasint"`
	Fragment Fragment `json:"fragment" cbor:"2,keyasint"`
	Module   string   `json:"module,omitempty" cbor:"3,keyasint,omitempty"`
	Sequence int      `json:"sequence" cbor:"4,keyasint"`
	Default  bool     `json:"default" cbor:"5,keyasint"`
}

// Mapping is the total slot -> fragment mapping produced by Resolve. It is
// rebuilt from scratch on every resolution and never updated in place.
type Mapping struct {
	entries map[slot.ID]Entry
}

// Lookup returns the entry for id.
func (m Mapping) Lookup(id slot.ID) (Entry, bool) {
	entry, ok := m.entries[id]
	return entry, ok
}

// Len reports how many slots the mapping covers.
func (m Mapping) Len() int {
	return len(m.entries)
}

// Entries returns every entry sorted by slot.
func (m Mapping) Entries() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Equal reports whether both mappings select the same fragments.
func (m Mapping) Equal(other Mapping) bool {
	if len(m.entries) != len(other.entries) {
		return false
	}
	for id, entry := range m.entries {
		if otherEntry, ok := other.entries[id]; !ok || otherEntry != entry {
			return false
		}
	}
	return true
}

var canonicalEncoding cbor.EncMode

func init() {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("override: canonical cbor mode: %v", err))
	}
	canonicalEncoding = mode
}

// Encode returns the canonical CBOR encoding of the sorted entries.
func (m Mapping) Encode() ([]byte, error) {
	data, err := canonicalEncoding.Marshal(m.Entries())
	if err != nil {
		return nil, fmt.Errorf("override: encode mapping: %w", err)
	}
	return data, nil
}

// Fingerprint hashes the canonical encoding. Equal mappings always produce
// the same fingerprint.
func (m Mapping) Fingerprint() (string, error) {
	data, err := m.Encode()
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
