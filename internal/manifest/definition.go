package manifest

import (
	"fmt"
	"strings"

	"github.com/kingrea/layoutweave/internal/override"
	"github.com/kingrea/layoutweave/internal/slot"
)

// DefaultSequence is the sequence a manifest gets when it declares none.
const DefaultSequence = 10

// Definition describes an add-on module manifest.
//
// The schema mirrors the host's module manifest (metadata, sequence, depends,
// data files, install flags) plus an explicit overrides list naming the slots
// each data file replaces.
type Definition struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Version     string         `json:"version" yaml:"version"`
	Category    string         `json:"category,omitempty" yaml:"category,omitempty"`
	Summary     string         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string         `json:"author,omitempty" yaml:"author,omitempty"`
	Website     string         `json:"website,omitempty" yaml:"website,omitempty"`
	License     string         `json:"license,omitempty" yaml:"license,omitempty"`
	Sequence    *int           `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Depends     []string       `json:"depends,omitempty" yaml:"depends,omitempty"`
	Data        []string       `json:"data,omitempty" yaml:"data,omitempty"`
	Overrides   []OverrideSpec `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Installable *bool          `json:"installable,omitempty" yaml:"installable,omitempty"`
	AutoInstall bool           `json:"auto_install,omitempty" yaml:"auto_install,omitempty"`
	Application bool           `json:"application,omitempty" yaml:"application,omitempty"`
}

// OverrideSpec names one slot a manifest replaces. Sequence falls back to
// the manifest's sequence.
type OverrideSpec struct {
	Slot     string `json:"slot" yaml:"slot"`
	Template string `json:"template" yaml:"template"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Sequence *int   `json:"sequence,omitempty" yaml:"sequence,omitempty"`
}

// Normalized returns a trimmed copy with slot names lower-cased.
func (def Definition) Normalized() Definition {
	clone := Definition{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Version:     strings.TrimSpace(def.Version),
		Category:    strings.TrimSpace(def.Category),
		Summary:     strings.TrimSpace(def.Summary),
		Description: strings.TrimSpace(def.Description),
		Author:      strings.TrimSpace(def.Author),
		Website:     strings.TrimSpace(def.Website),
		License:     strings.TrimSpace(def.License),
		Sequence:    copyInt(def.Sequence),
		AutoInstall: def.AutoInstall,
		Application: def.Application,
	}
	if def.Installable != nil {
		installable := *def.Installable
		clone.Installable = &installable
	}
	clone.Depends = trimAll(def.Depends)
	clone.Data = trimAll(def.Data)
	if len(def.Overrides) > 0 {
		clone.Overrides = make([]OverrideSpec, len(def.Overrides))
		for i, spec := range def.Overrides {
			clone.Overrides[i] = spec.normalized()
		}
	}
	return clone
}

// Validate ensures the manifest is well-formed. Slots are not checked
// against a catalog here; unknown slots are tolerated at resolution time.
func (def Definition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("manifest: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("manifest %s: version is required", normalized.ID)
	}
	if normalized.Sequence != nil && *normalized.Sequence < 0 {
		return fmt.Errorf("manifest %s: sequence must be >= 0", normalized.ID)
	}
	seen := make(map[string]struct{}, len(normalized.Depends))
	for idx, dep := range normalized.Depends {
		if dep == "" {
			return fmt.Errorf("manifest %s: depends[%d]: module name is required", normalized.ID, idx)
		}
		if dep == normalized.ID {
			return fmt.Errorf("manifest %s: depends on itself", normalized.ID)
		}
		if _, dup := seen[dep]; dup {
			return fmt.Errorf("manifest %s: depends[%d]: duplicate module %s", normalized.ID, idx, dep)
		}
		seen[dep] = struct{}{}
	}
	data := make(map[string]struct{}, len(normalized.Data))
	for _, file := range normalized.Data {
		data[file] = struct{}{}
	}
	for idx, spec := range normalized.Overrides {
		if err := spec.validate(data); err != nil {
			return fmt.Errorf("manifest %s: overrides[%d]: %w", normalized.ID, idx, err)
		}
	}
	return nil
}

// EffectiveSequence returns the declared sequence or DefaultSequence.
func (def Definition) EffectiveSequence() int {
	if def.Sequence == nil {
		return DefaultSequence
	}
	return *def.Sequence
}

// IsInstallable defaults to true when the manifest is silent.
func (def Definition) IsInstallable() bool {
	return def.Installable == nil || *def.Installable
}

// DisplayName prefers the human name and falls back to the id.
func (def Definition) DisplayName() string {
	if def.Name != "" {
		return def.Name
	}
	return def.ID
}

// Declarations converts the overrides into resolver declarations owned by
// this module.
func (def Definition) Declarations() []override.Declaration {
	normalized := def.Normalized()
	if len(normalized.Overrides) == 0 {
		return nil
	}
	base := normalized.EffectiveSequence()
	out := make([]override.Declaration, 0, len(normalized.Overrides))
	for _, spec := range normalized.Overrides {
		id, _ := slot.Parse(spec.Slot)
		sequence := base
		if spec.Sequence != nil {
			sequence = *spec.Sequence
		}
		out = append(out, override.Declaration{
			Slot:     id,
			Module:   normalized.ID,
			Sequence: sequence,
			Fragment: override.Fragment{
				Module:   normalized.ID,
				Template: spec.Template,
				File:     spec.File,
			},
		})
	}
	return out
}

func (spec OverrideSpec) normalized() OverrideSpec {
	id, _ := slot.Parse(spec.Slot)
	return OverrideSpec{
		Slot:     string(id),
		Template: strings.TrimSpace(spec.Template),
		File:     strings.TrimSpace(spec.File),
		Sequence: copyInt(spec.Sequence),
	}
}

func (spec OverrideSpec) validate(data map[string]struct{}) error {
	if spec.Slot == "" {
		return fmt.Errorf("slot is required")
	}
	if spec.Template == "" {
		return fmt.Errorf("template is required for slot %s", spec.Slot)
	}
	if spec.Sequence != nil && *spec.Sequence < 0 {
		return fmt.Errorf("sequence must be >= 0 for slot %s", spec.Slot)
	}
	if spec.File != "" {
		if _, ok := data[spec.File]; !ok {
			return fmt.Errorf("file %s is not listed in data", spec.File)
		}
	}
	return nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.TrimSpace(value)
	}
	return out
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
