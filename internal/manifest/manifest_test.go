package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/layoutweave/internal/slot"
)

const spaceyManifest = `id: dh_efficient_layout
name: DH Efficient Layout
version: 13.0.1.0.0
category: Extra Tools
summary: Professional document layouts for reports
license: LGPL-3
sequence: 1000
depends: [base, web, account, sale, purchase, stock]
data:
  - views/report_templates.xml
  - views/invoice_inherit.xml
  - views/delivery_note_inherit.xml
overrides:
  - slot: Document-Header
    template: dh_efficient_layout.external_layout_spacey_header
    file: views/report_templates.xml
  - slot: document-footer
    template: dh_efficient_layout.external_layout_spacey_footer
    file: views/report_templates.xml
  - slot: title-block
    template: dh_efficient_layout.delivery_title
    file: views/delivery_note_inherit.xml
    sequence: 20
installable: true
`

func TestParseYAML(t *testing.T) {
	def, err := ParseYAML([]byte(spaceyManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.ID != "dh_efficient_layout" || def.EffectiveSequence() != 1000 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if len(def.Depends) != 6 || def.Depends[3] != "sale" {
		t.Fatalf("unexpected depends: %v", def.Depends)
	}
	if def.Overrides[0].Slot != string(slot.Header) {
		t.Fatalf("slot not normalized: %q", def.Overrides[0].Slot)
	}
	if !def.IsInstallable() || def.AutoInstall || def.Application {
		t.Fatalf("unexpected install flags: %+v", def)
	}
}

func TestDefinitionDeclarations(t *testing.T) {
	def, err := ParseYAML([]byte(spaceyManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	decls := def.Declarations()
	if len(decls) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(decls))
	}
	if decls[0].Slot != slot.Header || decls[0].Sequence != 1000 || decls[0].Module != "dh_efficient_layout" {
		t.Fatalf("unexpected header declaration: %+v", decls[0])
	}
	if decls[2].Sequence != 20 {
		t.Fatalf("per-override sequence ignored: %+v", decls[2])
	}
	if decls[1].Fragment.File != "views/report_templates.xml" || decls[1].Fragment.Module != "dh_efficient_layout" {
		t.Fatalf("unexpected fragment: %+v", decls[1].Fragment)
	}
}

func TestDefinitionDefaults(t *testing.T) {
	def, err := ParseYAML([]byte("id: plain\nversion: 1.0.0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.EffectiveSequence() != DefaultSequence {
		t.Fatalf("expected default sequence, got %d", def.EffectiveSequence())
	}
	if !def.IsInstallable() {
		t.Fatalf("manifests are installable unless they say otherwise")
	}
	if def.DisplayName() != "plain" {
		t.Fatalf("expected id as display name, got %q", def.DisplayName())
	}
	if def.Declarations() != nil {
		t.Fatalf("expected no declarations")
	}
}

func TestParseYAMLErrors(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"missing id":      "version: 1\n",
		"missing version": "id: x\n",
		"negative":        "id: x\nversion: 1\nsequence: -1\n",
		"self dependency": "id: x\nversion: 1\ndepends: [x]\n",
		"duplicate dep":   "id: x\nversion: 1\ndepends: [web, web]\n",
		"missing slot":    "id: x\nversion: 1\noverrides:\n  - template: t\n",
		"missing tmpl":    "id: x\nversion: 1\noverrides:\n  - slot: document-header\n",
		"unlisted file":   "id: x\nversion: 1\noverrides:\n  - slot: document-header\n    template: t\n    file: views/x.xml\n",
		"bad yaml":        "id: [\n",
	}
	for name, payload := range cases {
		if _, err := ParseYAML([]byte(payload)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseYAMLAllowsUnknownSlots(t *testing.T) {
	payload := "id: x\nversion: 1\noverrides:\n  - slot: watermark\n    template: x.watermark\n"
	def, err := ParseYAML([]byte(payload))
	if err != nil {
		t.Fatalf("unknown slots must parse: %v", err)
	}
	if def.Declarations()[0].Slot != "watermark" {
		t.Fatalf("unexpected slot: %+v", def.Declarations()[0])
	}
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "spacey.yaml")
	if err := os.WriteFile(path, []byte(spaceyManifest), 0644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	files, err := LoadDir(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(files) != 1 || files[0].Path != path {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestLoadDirMissing(t *testing.T) {
	files, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if files != nil {
		t.Fatalf("expected nil slice for missing dir, got %v", files)
	}
}

func TestLoadDirReportsBadFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "broken.yml"), []byte("id: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadDir(root)
	if err == nil || !strings.Contains(err.Error(), "broken.yml") {
		t.Fatalf("expected error naming broken.yml, got %v", err)
	}
}

const goManifestSource = `package main

func Manifests() ([]map[string]any, error) {
	return []map[string]any{
		{
			"id":       "go_layout",
			"version":  "1.0.0",
			"sequence": 50,
			"depends":  []string{"web"},
			"overrides": []map[string]any{
				{"slot": "document-footer", "template": "go_layout.footer"},
			},
		},
	}, nil
}`

func TestLoadGoDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go_layout.go"), []byte(goManifestSource), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	files, err := LoadGoDir(dir)
	if err != nil {
		t.Fatalf("load go manifests: %v", err)
	}
	if len(files) != 1 || files[0].Definition.ID != "go_layout" {
		t.Fatalf("unexpected files: %+v", files)
	}
	decls := files[0].Definition.Declarations()
	if len(decls) != 1 || decls[0].Slot != slot.Footer || decls[0].Sequence != 50 {
		t.Fatalf("unexpected declarations: %+v", decls)
	}
}

func TestLoadGoDirMissingFunc(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatalf("write broken manifest: %v", err)
	}
	if _, err := LoadGoDir(dir); err == nil {
		t.Fatalf("expected error for missing Manifests function")
	}
}

func TestLoadAllRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("id: dup\nversion: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("id: dup\nversion: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadAll(dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate module id dup") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestLoadAllMergesSources(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "spacey.yaml"), []byte(spaceyManifest), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "go_layout.go"), []byte(goManifestSource), 0644); err != nil {
		t.Fatal(err)
	}
	files, err := LoadAll(dir)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	index := Index(files)
	if len(index) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(index))
	}
	if _, ok := index["go_layout"]; !ok {
		t.Fatalf("go manifest missing from index")
	}
}
