// internal/config/config.go
//
// This package handles configuration and the .layoutweave directory structure.
// Every project that resolves layouts gets a .layoutweave/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/layoutweave/internal/slot"
)

const (
	// StateDir is the name of the directory we create in each project
	StateDir = ".layoutweave"

	// ManifestsEnv overrides the manifests directory for one invocation.
	ManifestsEnv = "LAYOUTWEAVE_MANIFESTS"

	defaultManifestsDir = StateDir + "/manifests"
)

// DefaultHostModules are provided by the host framework and never need a
// manifest of their own.
var DefaultHostModules = []string{"base", "web", "account", "sale", "purchase", "stock"}

const defaultProjectConfigYAML = `# layoutweave project configuration
version: 1

# Directory holding add-on manifests (*.yaml, *.yml, *.go), relative to the project.
manifests: .layoutweave/manifests

# Modules supplied by the host framework. Manifests may depend on them freely.
host_modules:
  - base
  - web
  - account
  - sale
  - purchase
  - stock

# Extra slots recognized by this host, on top of the built-in ones.
# slots:
#   - id: watermark
#     default_template: web.watermark_none

# Modules installed when no --install flag is given. Empty means every
# installable manifest. auto_install manifests follow once their
# dependencies are installed.
install: []
`

// SlotConfig declares a host-specific slot.
type SlotConfig struct {
	ID              string `yaml:"id"`
	DefaultTemplate string `yaml:"default_template"`
}

// ProjectConfig models .layoutweave/config.yaml.
type ProjectConfig struct {
	Version     int          `yaml:"version"`
	Manifests   string       `yaml:"manifests"`
	HostModules []string     `yaml:"host_modules"`
	Slots       []SlotConfig `yaml:"slots,omitempty"`
	Install     []string     `yaml:"install"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory the command ran from
	ProjectDir string

	// StateDir is ProjectDir/.layoutweave
	StateDir string

	Project ProjectConfig

	// manifestsOverride comes from the environment or a command flag and is
	// never written back to config.yaml.
	manifestsOverride string
}

// InitStateDir creates the .layoutweave directory structure in projectDir.
//
// Structure created:
// .layoutweave/
// ├── config.yaml
// ├── logs/        <- layoutweave.log and the resolution logbook
// └── manifests/   <- add-on manifests
func InitStateDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, StateDir)
	dirs := []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "manifests"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig loads .layoutweave/config.yaml, falling back to defaults when the
// file does not exist.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, StateDir),
		Project:    defaultProjectConfig(),
	}
	cfg.Project.normalize(projectDir)
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.SetManifestsDir(os.Getenv(ManifestsEnv))
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// LogbookPath returns the resolution history file
func (c *Config) LogbookPath() string {
	return filepath.Join(c.LogsDir(), "resolutions.log")
}

// ManifestsDir returns the absolute manifests directory. A runtime override
// wins over the configured one.
func (c *Config) ManifestsDir() string {
	if c.manifestsOverride != "" {
		return c.manifestsOverride
	}
	return c.Project.Manifests
}

// SetManifestsDir overrides the manifests directory for this process only.
// Relative paths resolve against the project directory; empty clears it.
func (c *Config) SetManifestsDir(dir string) {
	c.manifestsOverride = resolvePath(c.ProjectDir, dir)
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// HostModules returns the module names provided by the host framework.
func (c *Config) HostModules() []string {
	return append([]string(nil), c.Project.HostModules...)
}

// DefaultInstall returns the configured install list.
func (c *Config) DefaultInstall() []string {
	return append([]string(nil), c.Project.Install...)
}

// Catalog builds the slot catalog: built-ins plus configured host slots.
func (c *Config) Catalog() (*slot.Catalog, error) {
	catalog := slot.NewCatalog()
	for i, s := range c.Project.Slots {
		if err := catalog.Extend(s.ID, s.DefaultTemplate); err != nil {
			return nil, fmt.Errorf("config: slots[%d]: %w", i, err)
		}
	}
	return catalog, nil
}

// SetDefaultInstall replaces the install list and persists it back to
// .layoutweave/config.yaml.
func (c *Config) SetDefaultInstall(ids []string) error {
	var cleaned []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !contains(cleaned, id) {
			cleaned = append(cleaned, id)
		}
	}
	c.Project.Install = cleaned
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:     1,
		Manifests:   defaultManifestsDir,
		HostModules: append([]string(nil), DefaultHostModules...),
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Manifests) == "" {
		pc.Manifests = defaultManifestsDir
	}
	if pc.HostModules == nil {
		pc.HostModules = append([]string(nil), DefaultHostModules...)
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Manifests = resolvePath(base, pc.Manifests)
	pc.HostModules = trimUnique(pc.HostModules)
	pc.Install = trimUnique(pc.Install)
	for i := range pc.Slots {
		id, _ := slot.Parse(pc.Slots[i].ID)
		pc.Slots[i].ID = string(id)
		pc.Slots[i].DefaultTemplate = strings.TrimSpace(pc.Slots[i].DefaultTemplate)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	for i, s := range pc.Slots {
		if s.ID == "" {
			return fmt.Errorf("slots[%d]: id is required", i)
		}
		if s.DefaultTemplate == "" {
			return fmt.Errorf("slots[%d]: default_template is required", i)
		}
	}
	for _, id := range pc.Install {
		if contains(pc.HostModules, id) {
			return fmt.Errorf("install: %s is a host module", id)
		}
	}
	return nil
}

// relativeTo returns a copy whose manifests path is relative to base when it
// lives inside it, so config.yaml stays portable.
func (pc ProjectConfig) relativeTo(base string) ProjectConfig {
	rel, err := filepath.Rel(base, pc.Manifests)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		pc.Manifests = filepath.ToSlash(rel)
	}
	return pc
}

func trimUnique(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project.relativeTo(c.ProjectDir))
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
