package override

import (
	"errors"

	"github.com/kingrea/layoutweave/internal/slot"
)

// Logger receives resolution diagnostics. *logging.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// Resolver is the host-facing view of a declaration Set.
type Resolver struct {
	set     *Set
	catalog *slot.Catalog
	logger  Logger
}

// NewResolver binds a declaration set to the host's slot catalog. A nil
// catalog means built-in slots only; logger may be nil.
func NewResolver(set *Set, catalog *slot.Catalog, logger Logger) *Resolver {
	if set == nil {
		set = NewSet()
	}
	if catalog == nil {
		catalog = slot.NewCatalog()
	}
	return &Resolver{set: set, catalog: catalog, logger: logger}
}

// Set exposes the underlying declaration set.
func (r *Resolver) Set() *Set {
	return r.set
}

// Catalog exposes the slot catalog used for resolution.
func (r *Resolver) Catalog() *slot.Catalog {
	return r.catalog
}

// Resolve rebuilds the full mapping from the current declarations. Unknown
// slots are logged and skipped; ambiguous ties return a *ConfigurationError.
func (r *Resolver) Resolve() (Mapping, error) {
	result, err := r.ResolveDetailed()
	if err != nil {
		return Mapping{}, err
	}
	return result.Mapping, nil
}

// ResolveDetailed is Resolve plus the list of ignored declarations. Ignored
// declarations are reported even when a conflict fails the resolution.
func (r *Resolver) ResolveDetailed() (Result, error) {
	result, err := Resolve(r.catalog, r.set.Declarations(), r.set.Graph())
	for _, unknown := range result.Ignored {
		r.logf("resolve: ignored: %v", unknown)
	}
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			for _, conflict := range cfgErr.Conflicts {
				r.logf("resolve: conflict: %s", conflict)
			}
		}
		return Result{Ignored: result.Ignored}, err
	}
	return result, nil
}

func (r *Resolver) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
