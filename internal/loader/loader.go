// Package loader drives the install/uninstall lifecycle of add-on modules.
// It feeds each installed manifest's overrides into an override.Set and
// re-resolves the whole mapping after every change, the way the host
// framework's module loader would.
package loader

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kingrea/layoutweave/internal/logbook"
	"github.com/kingrea/layoutweave/internal/manifest"
	"github.com/kingrea/layoutweave/internal/override"
	"github.com/kingrea/layoutweave/internal/slot"
)

// Options configures a Loader.
type Options struct {
	// Catalog lists the slots the host recognizes. Nil means built-ins only.
	Catalog *slot.Catalog
	// HostModules are satisfied by the host and have no manifest.
	HostModules []string
	Logger      override.Logger
	Logbook     *logbook.Logbook
}

// Loader tracks known manifests and the installed set. Install and
// Uninstall are serialized, matching the host's exclusive module operations.
type Loader struct {
	mu        sync.Mutex
	manifests map[string]manifest.Definition
	host      map[string]bool
	installed map[string]bool

	catalog  *slot.Catalog
	logger   override.Logger
	logbook  *logbook.Logbook
	resolver *override.Resolver

	result override.Result
	err    error
}

// New builds a loader over the provided manifests. Nothing is installed yet;
// the initial mapping holds only catalog defaults.
func New(files []manifest.File, opts Options) (*Loader, error) {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = slot.NewCatalog()
	}
	l := &Loader{
		host:      make(map[string]bool, len(opts.HostModules)),
		installed: map[string]bool{},
		catalog:   catalog,
		logger:    opts.Logger,
		logbook:   opts.Logbook,
	}
	for _, name := range opts.HostModules {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			l.host[trimmed] = true
		}
	}
	if err := l.setManifests(files); err != nil {
		return nil, err
	}
	l.resolver = override.NewResolver(override.NewSet(), catalog, opts.Logger)
	l.refresh("init")
	return l, nil
}

func (l *Loader) setManifests(files []manifest.File) error {
	index := make(map[string]manifest.Definition, len(files))
	for _, file := range files {
		def := file.Definition
		if l.host[def.ID] {
			return fmt.Errorf("loader: manifest %s (%s) shadows a host module", def.ID, file.Path)
		}
		if _, dup := index[def.ID]; dup {
			return fmt.Errorf("loader: duplicate manifest %s", def.ID)
		}
		index[def.ID] = def
	}
	l.manifests = index
	return nil
}

// Manifests returns every known manifest sorted by id.
func (l *Loader) Manifests() []manifest.Definition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]manifest.Definition, 0, len(l.manifests))
	for _, def := range l.manifests {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Installed returns the installed module ids sorted lexically.
func (l *Loader) Installed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedKeys(l.installed)
}

// IsInstalled reports whether id is installed.
func (l *Loader) IsInstalled(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.installed[id]
}

// Catalog returns the slot catalog used for resolution.
func (l *Loader) Catalog() *slot.Catalog {
	return l.catalog
}

// Mapping returns the mapping computed after the last change, or the
// resolution error that change produced.
func (l *Loader) Mapping() (override.Mapping, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return override.Mapping{}, l.err
	}
	return l.result.Mapping, nil
}

// Result returns the last resolution result and error. A failed resolution
// still carries its ignored declarations.
func (l *Loader) Result() (override.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.err
}

// Order returns the load order needed to install ids: dependencies first,
// independent modules by sequence then id. Installed modules are skipped.
func (l *Loader) Order(ids ...string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order(ids)
}

func (l *Loader) order(ids []string) ([]string, error) {
	const (
		visiting = iota + 1
		done
	)
	state := make(map[string]int)
	var ordered []string
	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		if l.host[id] {
			return nil
		}
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("loader: dependency cycle: %s", strings.Join(append(path, id), " -> "))
		}
		def, ok := l.manifests[id]
		if !ok {
			if len(path) == 0 {
				return fmt.Errorf("loader: unknown module %s", id)
			}
			return fmt.Errorf("loader: %s depends on missing module %s", path[len(path)-1], id)
		}
		if !def.IsInstallable() {
			return fmt.Errorf("loader: module %s is not installable", id)
		}
		state[id] = visiting
		for _, dep := range l.sortBySequence(def.Depends) {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = done
		if !l.installed[id] {
			ordered = append(ordered, id)
		}
		return nil
	}
	for _, id := range l.sortBySequence(trimmed(ids)) {
		if err := visit(id, nil); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func (l *Loader) sortBySequence(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := l.sequenceOf(out[i]), l.sequenceOf(out[j])
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out
}

func (l *Loader) sequenceOf(id string) int {
	if def, ok := l.manifests[id]; ok {
		return def.EffectiveSequence()
	}
	return 0
}

// Install installs ids and any missing manifest dependencies in load order,
// then re-resolves. It returns the modules newly installed. A resolution
// conflict does not roll the install back; it is reported through the
// returned error and Mapping.
func (l *Loader) Install(ids ...string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ordered, err := l.order(ids)
	if err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return nil, nil
	}
	var installed []string
	for _, id := range ordered {
		if err := l.installOne(id); err != nil {
			l.refresh("install " + strings.Join(installed, ","))
			return installed, err
		}
		installed = append(installed, id)
	}
	l.refresh("install " + strings.Join(installed, ","))
	return installed, l.err
}

func (l *Loader) installOne(id string) error {
	def := l.manifests[id]
	set := l.resolver.Set()
	if err := set.RegisterModule(id, def.Depends); err != nil {
		return fmt.Errorf("loader: install %s: %w", id, err)
	}
	decls := def.Declarations()
	for _, decl := range decls {
		if err := set.RegisterOverride(decl.Slot, decl.Module, decl.Sequence, decl.Fragment); err != nil {
			set.UnregisterModule(id)
			return fmt.Errorf("loader: install %s: %w", id, err)
		}
	}
	l.installed[id] = true
	l.logbook.Info("install %s %s (sequence %d, %d overrides)", id, def.Version, def.EffectiveSequence(), len(decls))
	return nil
}

// AutoInstall installs every auto_install manifest whose dependencies are
// all satisfied, repeating until nothing else qualifies.
func (l *Loader) AutoInstall() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var installed []string
	for {
		progressed := false
		for _, id := range l.sortBySequence(sortedKeys(l.manifests)) {
			def := l.manifests[id]
			if l.installed[id] || !def.AutoInstall || !def.IsInstallable() || !l.satisfied(def) {
				continue
			}
			if err := l.installOne(id); err != nil {
				l.refresh("auto-install")
				return installed, err
			}
			installed = append(installed, id)
			progressed = true
		}
		if !progressed {
			break
		}
	}
	if len(installed) == 0 {
		return nil, nil
	}
	l.refresh("auto-install " + strings.Join(installed, ","))
	return installed, l.err
}

func (l *Loader) satisfied(def manifest.Definition) bool {
	for _, dep := range def.Depends {
		if !l.host[dep] && !l.installed[dep] {
			return false
		}
	}
	return true
}

// Uninstall removes id and every installed module depending on it,
// dependents first, then re-resolves. It returns the removed ids in removal
// order.
func (l *Loader) Uninstall(id string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id = strings.TrimSpace(id)
	if l.host[id] {
		return nil, fmt.Errorf("loader: %s is a host module and cannot be uninstalled", id)
	}
	if !l.installed[id] {
		return nil, fmt.Errorf("loader: module %s is not installed", id)
	}
	doomed := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, candidate := range sortedKeys(l.installed) {
			if doomed[candidate] {
				continue
			}
			for _, dep := range l.manifests[candidate].Depends {
				if doomed[dep] {
					doomed[candidate] = true
					changed = true
					break
				}
			}
		}
	}
	removal := l.removalOrder(doomed)
	set := l.resolver.Set()
	for _, name := range removal {
		removed := set.UnregisterModule(name)
		delete(l.installed, name)
		l.logbook.Info("uninstall %s (%d overrides removed)", name, removed)
	}
	l.refresh("uninstall " + strings.Join(removal, ","))
	return removal, l.err
}

// removalOrder lists doomed modules so that each one is removed before any
// module it depends on.
func (l *Loader) removalOrder(doomed map[string]bool) []string {
	var order []string
	visited := make(map[string]bool, len(doomed))
	var visit func(string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range l.manifests[name].Depends {
			if doomed[dep] {
				visit(dep)
			}
		}
		order = append(order, name)
	}
	for _, name := range sortedKeys(doomed) {
		visit(name)
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Reload swaps in a new manifest list, rebuilds the declaration set from
// scratch and reinstalls previously installed modules that still exist.
// Modules that can no longer be installed are dropped and reported.
func (l *Loader) Reload(files []manifest.File) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.setManifests(files); err != nil {
		return nil, err
	}
	previous := sortedKeys(l.installed)
	l.installed = map[string]bool{}
	l.resolver = override.NewResolver(override.NewSet(), l.catalog, l.logger)
	var dropped []string
	for _, id := range previous {
		if l.installed[id] {
			continue
		}
		ordered, err := l.order([]string{id})
		if err == nil {
			for _, name := range ordered {
				if err = l.installOne(name); err != nil {
					break
				}
			}
		}
		if err != nil {
			dropped = append(dropped, id)
			l.logbook.Warn("reload: dropped %s: %v", id, err)
		}
	}
	l.refresh("reload")
	return dropped, l.err
}

func (l *Loader) refresh(reason string) {
	result, err := l.resolver.ResolveDetailed()
	l.result, l.err = result, err
	for _, unknown := range result.Ignored {
		l.logbook.Warn("%s: %v", reason, unknown)
	}
	if err != nil {
		var cfgErr *override.ConfigurationError
		if errors.As(err, &cfgErr) {
			for _, conflict := range cfgErr.Conflicts {
				l.logbook.Error("%s: %s", reason, conflict)
			}
		} else {
			l.logbook.Error("%s: %v", reason, err)
		}
		return
	}
	fingerprint, fpErr := result.Mapping.Fingerprint()
	if fpErr != nil {
		l.logbook.Error("%s: %v", reason, fpErr)
		return
	}
	l.logbook.Resolved(reason, result.Mapping.Len(), fingerprint)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func trimmed(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := strings.TrimSpace(id); t != "" {
			out = append(out, t)
		}
	}
	return out
}
