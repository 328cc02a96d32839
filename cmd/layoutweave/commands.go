package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/kingrea/layoutweave/internal/config"
	"github.com/kingrea/layoutweave/internal/loader"
	"github.com/kingrea/layoutweave/internal/logbook"
	"github.com/kingrea/layoutweave/internal/logging"
	"github.com/kingrea/layoutweave/internal/manifest"
	"github.com/kingrea/layoutweave/internal/override"
	"github.com/kingrea/layoutweave/internal/tui"
	"github.com/kingrea/layoutweave/internal/watch"
)

// commonFlags are shared by every command that touches a project.
type commonFlags struct {
	project   string
	manifests string
	install   []string
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&common.project, "project", "p", "", "project directory (defaults to cwd)")
	fs.StringVarP(&common.manifests, "manifests", "m", "", "manifests directory (overrides config)")
	fs.StringSliceVarP(&common.install, "install", "i", nil, "modules to install (comma separated, repeatable)")
	return fs
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// session bundles the configuration and log sinks of one invocation.
type session struct {
	cfg     *config.Config
	logger  *logging.Logger
	logbook *logbook.Logbook
	install []string
}

func openSession(common commonFlags) (*session, error) {
	project := common.project
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	absolute, err := filepath.Abs(project)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	cfg, err := config.NewConfig(absolute)
	if err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(common.manifests); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve manifests dir: %w", err)
		}
		cfg.SetManifestsDir(abs)
	}
	logger, err := logging.New(absolute)
	if err != nil {
		return nil, err
	}
	book, err := logbook.New(cfg.LogbookPath())
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open logbook: %w", err)
	}
	install := common.install
	if len(install) == 0 {
		install = cfg.DefaultInstall()
	}
	return &session{cfg: cfg, logger: logger, logbook: book, install: install}, nil
}

func (s *session) Close() {
	s.logger.Close()
}

func (s *session) loadManifests() ([]manifest.File, error) {
	files, err := manifest.LoadAll(s.cfg.ManifestsDir())
	if err != nil {
		return nil, err
	}
	s.logger.Named("manifest").Printf("loaded %d manifest(s) from %s", len(files), s.cfg.ManifestsDir())
	return files, nil
}

func (s *session) newLoader(files []manifest.File) (*loader.Loader, error) {
	catalog, err := s.cfg.Catalog()
	if err != nil {
		return nil, err
	}
	return loader.New(files, loader.Options{
		Catalog:     catalog,
		HostModules: s.cfg.HostModules(),
		Logger:      s.logger.Named("resolve"),
		Logbook:     s.logbook,
	})
}

// targets returns the modules to install: the explicit list, or every
// installable manifest when none was configured.
func (s *session) targets(l *loader.Loader) []string {
	if len(s.install) > 0 {
		return s.install
	}
	var ids []string
	for _, def := range l.Manifests() {
		if def.IsInstallable() {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// build loads manifests, installs targets and auto-install modules, and
// returns the loader holding the resulting mapping.
func (s *session) build() (*loader.Loader, error) {
	files, err := s.loadManifests()
	if err != nil {
		return nil, err
	}
	l, err := s.newLoader(files)
	if err != nil {
		return nil, err
	}
	if err := s.installInto(l); err != nil {
		return l, err
	}
	return l, nil
}

// installInto keeps installing past a conflict so the reported state covers
// every requested module; the conflict is returned from the final result.
func (s *session) installInto(l *loader.Loader) error {
	if _, err := l.Install(s.targets(l)...); err != nil && !isConflict(err) {
		return err
	}
	if _, err := l.AutoInstall(); err != nil && !isConflict(err) {
		return err
	}
	_, err := l.Result()
	return err
}

func isConflict(err error) bool {
	var cfgErr *override.ConfigurationError
	return errors.As(err, &cfgErr)
}

func runInit(args []string) error {
	var common commonFlags
	fs := newFlagSet("init", &common)
	if ok, err := parse(fs, args); !ok {
		return err
	}
	project := common.project
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	if err := config.InitStateDir(project); err != nil {
		return fmt.Errorf("init %s: %w", config.StateDir, err)
	}
	if len(common.install) > 0 {
		cfg, err := config.NewConfig(project)
		if err != nil {
			return err
		}
		if err := cfg.SetDefaultInstall(common.install); err != nil {
			return err
		}
	}
	fmt.Printf("Initialized %s in %s\n", config.StateDir, project)
	return nil
}

type jsonIgnored struct {
	Slot   string `json:"slot"`
	Module string `json:"module"`
}

type jsonResolution struct {
	Installed   []string         `json:"installed"`
	Fingerprint string           `json:"fingerprint"`
	Slots       []override.Entry `json:"slots"`
	Ignored     []jsonIgnored    `json:"ignored,omitempty"`
}

func runResolve(args []string) error {
	var common commonFlags
	fs := newFlagSet("resolve", &common)
	asJSON := fs.Bool("json", false, "print the mapping as JSON")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	s, err := openSession(common)
	if err != nil {
		return err
	}
	defer s.Close()

	l, err := s.build()
	if err != nil {
		if isConflict(err) {
			return errors.New(tui.RenderError(err))
		}
		return err
	}
	result, err := l.Result()
	if err != nil {
		return err
	}
	fingerprint, err := result.Mapping.Fingerprint()
	if err != nil {
		return err
	}
	if *asJSON {
		out := jsonResolution{
			Installed:   l.Installed(),
			Fingerprint: fingerprint,
			Slots:       result.Mapping.Entries(),
		}
		for _, unknown := range result.Ignored {
			out.Ignored = append(out.Ignored, jsonIgnored{Slot: string(unknown.Slot), Module: unknown.Module})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Println(tui.RenderMapping(result.Mapping))
	if ignored := tui.RenderIgnored(result.Ignored); ignored != "" {
		fmt.Println(ignored)
	}
	fmt.Printf("installed: %s\nfingerprint: %s\n", strings.Join(l.Installed(), ", "), fingerprint)
	return nil
}

func runValidate(args []string) error {
	var common commonFlags
	fs := newFlagSet("validate", &common)
	if ok, err := parse(fs, args); !ok {
		return err
	}
	s, err := openSession(common)
	if err != nil {
		return err
	}
	defer s.Close()

	return validateManifests(os.Stdout, s.cfg.ManifestsDir())
}

// validateManifests reports one status line per manifest in dir. A missing
// directory holds no manifests, the same as for loading.
func validateManifests(w io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(w, "No manifests in %s\n", dir)
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	failures := 0
	for _, entry := range entries {
		if entry.IsDir() || !manifest.IsYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		file, err := manifest.LoadFile(path)
		if err != nil {
			failures++
			fmt.Fprintf(w, "Invalid: %s\n- %v\n", path, err)
			continue
		}
		reportValid(w, file)
	}
	goFiles, err := manifest.LoadGoDir(dir)
	if err != nil {
		failures++
		fmt.Fprintf(w, "Invalid: %v\n", err)
	}
	for _, file := range goFiles {
		reportValid(w, file)
	}
	if failures > 0 {
		return fmt.Errorf("%d manifest(s) failed validation", failures)
	}
	if _, err := manifest.LoadAll(dir); err != nil {
		return err
	}
	return nil
}

func reportValid(w io.Writer, file manifest.File) {
	fmt.Fprintf(w, "OK: %s (%s, sequence %d, %d overrides)\n", file.Path, file.Definition.ID,
		file.Definition.EffectiveSequence(), len(file.Definition.Overrides))
}

func runOrder(args []string) error {
	var common commonFlags
	fs := newFlagSet("order", &common)
	if ok, err := parse(fs, args); !ok {
		return err
	}
	s, err := openSession(common)
	if err != nil {
		return err
	}
	defer s.Close()

	files, err := s.loadManifests()
	if err != nil {
		return err
	}
	l, err := s.newLoader(files)
	if err != nil {
		return err
	}
	order, err := l.Order(s.targets(l)...)
	if err != nil {
		return err
	}
	index := manifest.Index(files)
	for i, id := range order {
		fmt.Printf("%2d. %s (sequence %d)\n", i+1, id, index[id].EffectiveSequence())
	}
	return nil
}

func runInspect(args []string) error {
	var common commonFlags
	fs := newFlagSet("inspect", &common)
	if ok, err := parse(fs, args); !ok {
		return err
	}
	s, err := openSession(common)
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(tui.NewInspector(s.snapshot), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run inspector: %w", err)
	}
	return nil
}

// snapshot rebuilds from disk. Install failures other than conflicts win
// over whatever the loader resolved before failing.
func (s *session) snapshot() tui.Snapshot {
	l, err := s.build()
	if l == nil {
		return tui.Snapshot{Err: err}
	}
	snap := snapshotOf(l)
	if err != nil && !isConflict(err) {
		snap.Mapping = override.Mapping{}
		snap.Fingerprint = ""
		snap.Err = err
	}
	return snap
}

func snapshotOf(l *loader.Loader) tui.Snapshot {
	snap := tui.Snapshot{Installed: l.Installed()}
	result, err := l.Result()
	snap.Ignored = result.Ignored
	if err != nil {
		snap.Err = err
		return snap
	}
	snap.Mapping = result.Mapping
	snap.Fingerprint, snap.Err = result.Mapping.Fingerprint()
	return snap
}

func runWatch(args []string) error {
	var common commonFlags
	fs := newFlagSet("watch", &common)
	if ok, err := parse(fs, args); !ok {
		return err
	}
	s, err := openSession(common)
	if err != nil {
		return err
	}
	defer s.Close()

	l, err := s.build()
	if err != nil && !isConflict(err) {
		return err
	}
	fingerprint := report(l, "")

	w, err := watch.New(watch.DefaultConfig(s.cfg.ManifestsDir()))
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		w.Stop()
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Printf("Watching %s (ctrl+c to stop)\n", s.cfg.ManifestsDir())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			s.logger.Named("watch").Printf("%v", err)
		case <-changes:
			files, err := s.loadManifests()
			if err != nil {
				fmt.Println(tui.RenderError(err))
				continue
			}
			dropped, err := l.Reload(files)
			if err != nil && !isConflict(err) {
				fmt.Println(tui.RenderError(err))
				continue
			}
			for _, id := range dropped {
				fmt.Printf("dropped %s\n", id)
			}
			if err := s.installInto(l); err != nil && !isConflict(err) {
				fmt.Println(tui.RenderError(err))
				continue
			}
			fingerprint = report(l, fingerprint)
		}
	}
}

// report prints the current resolution and returns its fingerprint, noting
// when it matches previous.
func report(l *loader.Loader, previous string) string {
	snap := snapshotOf(l)
	if snap.Err != nil {
		fmt.Println(tui.RenderError(snap.Err))
		return ""
	}
	if snap.Fingerprint == previous {
		fmt.Printf("resolved %d slots, fingerprint %s (unchanged)\n", snap.Mapping.Len(), snap.Fingerprint)
	} else {
		fmt.Printf("resolved %d slots, fingerprint %s\n", snap.Mapping.Len(), snap.Fingerprint)
	}
	return snap.Fingerprint
}

func runHistory(args []string) error {
	var common commonFlags
	fs := newFlagSet("history", &common)
	lines := fs.IntP("lines", "n", 20, "number of entries to show")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	s, err := openSession(common)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, total := s.logbook.Tail(*lines)
	if total == 0 {
		fmt.Println("No resolution history yet.")
		return nil
	}
	for _, entry := range entries {
		fmt.Println(entry)
	}
	if total > len(entries) {
		fmt.Printf("(%d of %d entries)\n", len(entries), total)
	}
	if fingerprint, ok := s.logbook.LastFingerprint(); ok {
		fmt.Printf("last fingerprint: %s\n", fingerprint)
	}
	return nil
}
