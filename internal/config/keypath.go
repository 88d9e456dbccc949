package config

import (
	"fmt"
	"slices"
	"strings"
)

// Sections are the top-level keys of config.yaml.
var Sections = []string{"openai", "mattermost", "bridge", "logging", "journal"}

// ParseConfigPath splits a key such as "openai.assistantId" into its
// segments. The first segment must name a config section.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(raw, ".")
	if slices.Contains(parts, "") {
		return nil, &ConfigError{Message: fmt.Sprintf("config key %q has an empty segment", raw)}
	}
	if !slices.Contains(Sections, parts[0]) {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown config section %q (want one of %s)",
			parts[0], strings.Join(Sections, ", "))}
	}
	return parts, nil
}

// GetValueAtPath returns the value stored under path in a raw config tree.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	parent, ok := walk(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := parent[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath stores value under path. Missing sections are created and
// scalar values in the way are replaced by maps.
func SetValueAtPath(root map[string]any, path []string, value any) {
	parent, _ := walk(root, path, true)
	parent[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the value under path and reports whether there
// was one.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := walk(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// walk descends to the map holding the last segment of path.
func walk(root map[string]any, path []string, create bool) (map[string]any, bool) {
	node := root
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}
	return node, true
}
