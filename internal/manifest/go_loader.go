package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const goManifestFuncName = "Manifests"

// LoadGoDir evaluates every .go file in dir and collects the manifests
// returned by its Manifests() function.
func LoadGoDir(dir string) ([]File, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest: read %s: %w", trimmed, err)
	}
	var files []File
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		loaded, err := loadGoFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, loaded...)
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func loadGoFile(path string) ([]File, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("manifest: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("manifest: load interpreter symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("manifest: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goManifestFuncName)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s must define %s() ([]map[string]any, error): %w", path, goManifestFuncName, err)
	}
	raws, err := invokeManifestFunc(fnValue)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	files := make([]File, 0, len(raws))
	for idx, raw := range raws {
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("manifest: %s manifest[%d]: %w", path, idx, err)
		}
		def, err := ParseYAML(payload)
		if err != nil {
			return nil, fmt.Errorf("manifest: %s manifest[%d]: %w", path, idx, err)
		}
		files = append(files, File{Definition: def, Path: fmt.Sprintf("%s#%d", path, idx+1)})
	}
	return files, nil
}

func invokeManifestFunc(fn reflect.Value) ([]map[string]any, error) {
	if !fn.IsValid() {
		return nil, fmt.Errorf("missing %s function", goManifestFuncName)
	}
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goManifestFuncName)
	}
	if fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must take no arguments", goManifestFuncName)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goManifestFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", goManifestFuncName)
	}
	value := results[0]
	if raws, ok := value.Interface().([]map[string]any); ok {
		return raws, nil
	}
	if value.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goManifestFuncName)
	}
	out := make([]map[string]any, value.Len())
	for idx := 0; idx < value.Len(); idx++ {
		m, ok := value.Index(idx).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", goManifestFuncName, idx)
		}
		out[idx] = m
	}
	return out, nil
}
