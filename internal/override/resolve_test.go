package override

import (
	"errors"
	"strings"
	"testing"

	"github.com/kingrea/layoutweave/internal/slot"
)

func fragment(template string) Fragment {
	return Fragment{Template: template, File: "views/report_templates.xml"}
}

func mustRegister(t *testing.T, set *Set, id slot.ID, module string, sequence int, template string) {
	t.Helper()
	if err := set.RegisterOverride(id, module, sequence, fragment(template)); err != nil {
		t.Fatalf("register %s/%s: %v", module, id, err)
	}
}

func mustEntry(t *testing.T, m Mapping, id slot.ID) Entry {
	t.Helper()
	entry, ok := m.Lookup(id)
	if !ok {
		t.Fatalf("mapping has no entry for %s", id)
	}
	return entry
}

func TestResolveHighestSequenceWins(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, slot.Header, "A", 10, "a.header")
	mustRegister(t, set, slot.Header, "B", 1000, "b.header")

	mapping, err := NewResolver(set, nil, nil).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	entry := mustEntry(t, mapping, slot.Header)
	if entry.Module != "B" || entry.Fragment.Template != "b.header" || entry.Default {
		t.Fatalf("expected B to win header, got %+v", entry)
	}
}

func TestResolveTieIsConfigurationError(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, slot.Header, "A", 1000, "a.header")
	mustRegister(t, set, slot.Header, "B", 1000, "b.header")

	_, err := NewResolver(set, nil, nil).Resolve()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %+v", cfgErr.Conflicts)
	}
	conflict := cfgErr.Conflicts[0]
	if conflict.Slot != slot.Header || conflict.Sequence != 1000 {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}
	if len(conflict.Modules) != 2 || conflict.Modules[0] != "A" || conflict.Modules[1] != "B" {
		t.Fatalf("expected conflict to name A and B, got %v", conflict.Modules)
	}
	if !strings.Contains(err.Error(), "A, B") {
		t.Fatalf("error should name conflicting modules: %v", err)
	}
}

func TestResolveAfterUnregisterLeavesSoleDeclarant(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, slot.Header, "A", 1000, "a.header")
	mustRegister(t, set, slot.Header, "B", 1000, "b.header")
	resolver := NewResolver(set, nil, nil)
	if _, err := resolver.Resolve(); err == nil {
		t.Fatalf("expected tie before unregister")
	}

	if removed := set.UnregisterModule("B"); removed != 1 {
		t.Fatalf("expected 1 declaration removed, got %d", removed)
	}
	mapping, err := resolver.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry := mustEntry(t, mapping, slot.Header); entry.Module != "A" {
		t.Fatalf("expected A to win header, got %+v", entry)
	}
}

func TestResolveTieBrokenByDependency(t *testing.T) {
	set := NewSet()
	if err := set.RegisterModule("layout_base", []string{"web"}); err != nil {
		t.Fatal(err)
	}
	if err := set.RegisterModule("layout_spacey", []string{"layout_base"}); err != nil {
		t.Fatal(err)
	}
	mustRegister(t, set, slot.Footer, "layout_spacey", 1000, "spacey.footer")
	mustRegister(t, set, slot.Footer, "layout_base", 1000, "base.footer")

	mapping, err := NewResolver(set, nil, nil).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry := mustEntry(t, mapping, slot.Footer); entry.Module != "layout_spacey" {
		t.Fatalf("expected dependent module to win, got %+v", entry)
	}
}

func TestResolveTransitiveDependencyTieBreak(t *testing.T) {
	set := NewSet()
	_ = set.RegisterModule("a", nil)
	_ = set.RegisterModule("b", []string{"a"})
	_ = set.RegisterModule("c", []string{"b"})
	mustRegister(t, set, slot.Header, "a", 5, "a.header")
	mustRegister(t, set, slot.Header, "c", 5, "c.header")

	mapping, err := NewResolver(set, nil, nil).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry := mustEntry(t, mapping, slot.Header); entry.Module != "c" {
		t.Fatalf("expected c to win through transitive dependency, got %+v", entry)
	}
}

func TestResolveSameModuleDuplicateIsConflict(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, slot.TitleBlock, "A", 10, "a.title.one")
	mustRegister(t, set, slot.TitleBlock, "A", 10, "a.title.two")

	_, err := Resolve(slot.NewCatalog(), set.Declarations(), set.Graph())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestResolveReportsEveryConflict(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, slot.Header, "A", 1, "a.header")
	mustRegister(t, set, slot.Header, "B", 1, "b.header")
	mustRegister(t, set, slot.Footer, "A", 2, "a.footer")
	mustRegister(t, set, slot.Footer, "C", 2, "c.footer")

	_, err := Resolve(nil, set.Declarations(), set.Graph())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %+v", cfgErr.Conflicts)
	}
	if cfgErr.Conflicts[0].Slot != slot.Footer || cfgErr.Conflicts[1].Slot != slot.Header {
		t.Fatalf("conflicts not sorted by slot: %+v", cfgErr.Conflicts)
	}
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	catalog := slot.NewCatalog()
	mapping, err := NewResolver(NewSet(), catalog, nil).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mapping.Len() != catalog.Len() {
		t.Fatalf("mapping not total: %d of %d slots", mapping.Len(), catalog.Len())
	}
	for _, id := range catalog.IDs() {
		def, _ := catalog.Lookup(id)
		entry := mustEntry(t, mapping, id)
		if !entry.Default || entry.Fragment.Template != def.DefaultTemplate || entry.Module != "" {
			t.Fatalf("expected default for %s, got %+v", id, entry)
		}
	}
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, format)
}

func TestResolveIgnoresUnknownSlots(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, "watermark", "A", 10, "a.watermark")
	mustRegister(t, set, slot.Header, "A", 10, "a.header")
	logger := &recordingLogger{}

	result, err := NewResolver(set, nil, logger).ResolveDetailed()
	if err != nil {
		t.Fatalf("unknown slot must not fail resolution: %v", err)
	}
	if len(result.Ignored) != 1 || result.Ignored[0].Slot != "watermark" || result.Ignored[0].Module != "A" {
		t.Fatalf("unexpected ignored list: %+v", result.Ignored)
	}
	if _, ok := result.Mapping.Lookup("watermark"); ok {
		t.Fatalf("unknown slot leaked into mapping")
	}
	if len(logger.lines) != 1 {
		t.Fatalf("expected unknown slot to be logged once, got %v", logger.lines)
	}
}

func TestResolveHonoursExtendedCatalog(t *testing.T) {
	catalog := slot.NewCatalog()
	if err := catalog.Extend("watermark", "web.watermark_none"); err != nil {
		t.Fatal(err)
	}
	set := NewSet()
	mustRegister(t, set, "watermark", "A", 10, "a.watermark")

	mapping, err := NewResolver(set, catalog, nil).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry := mustEntry(t, mapping, "watermark"); entry.Module != "A" {
		t.Fatalf("expected A watermark, got %+v", entry)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, slot.Header, "A", 10, "a.header")
	mustRegister(t, set, slot.Footer, "B", 20, "b.footer")
	resolver := NewResolver(set, nil, nil)

	first, err := resolver.Resolve()
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := resolver.Resolve()
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("mappings differ between calls")
	}
	fp1, err := first.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := second.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if fp1 != fp2 {
		t.Fatalf("fingerprints differ: %s vs %s", fp1, fp2)
	}
}

func TestResolveKeepsIgnoredOnConflict(t *testing.T) {
	set := NewSet()
	mustRegister(t, set, "watermark", "C", 10, "c.watermark")
	mustRegister(t, set, slot.Footer, "A", 1000, "a.footer")
	mustRegister(t, set, slot.Footer, "B", 1000, "b.footer")
	logger := &recordingLogger{}

	result, err := NewResolver(set, nil, logger).ResolveDetailed()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(result.Ignored) != 1 || result.Ignored[0].Module != "C" {
		t.Fatalf("ignored declarations dropped on conflict: %+v", result.Ignored)
	}
	if result.Mapping.Len() != 0 {
		t.Fatalf("failed resolution must not carry a mapping")
	}
	var sawIgnored, sawConflict bool
	for _, line := range logger.lines {
		sawIgnored = sawIgnored || strings.HasPrefix(line, "resolve: ignored")
		sawConflict = sawConflict || strings.HasPrefix(line, "resolve: conflict")
	}
	if !sawIgnored || !sawConflict {
		t.Fatalf("expected both ignored and conflict lines, got %v", logger.lines)
	}
}
