package manifest

import (
	"fmt"
	"sort"
)

// LoadAll collects YAML and Go manifests from dir. Two files declaring the
// same module id is an error naming both sources.
func LoadAll(dir string) ([]File, error) {
	yamlFiles, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	goFiles, err := LoadGoDir(dir)
	if err != nil {
		return nil, err
	}
	files := append(yamlFiles, goFiles...)
	seen := make(map[string]string, len(files))
	for _, file := range files {
		id := file.Definition.ID
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("manifest: duplicate module id %s (%s and %s)", id, existing, file.Path)
		}
		seen[id] = file.Path
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Definition.ID < files[j].Definition.ID })
	return files, nil
}

// Index maps module ids to their definitions.
func Index(files []File) map[string]Definition {
	index := make(map[string]Definition, len(files))
	for _, file := range files {
		index[file.Definition.ID] = file.Definition
	}
	return index
}
