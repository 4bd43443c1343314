package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// configToJSON returns the file contents as JSON so Parse can run one strict
// decoder (DisallowUnknownFields) over both formats. Files with a .yaml/.yml
// extension are decoded and re-marshaled; anything else is treated as JSON
// and passed through untouched.
func configToJSON(path string, raw []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return raw, nil
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml config: %w", err)
	}
	j, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("converting yaml config to json: %w", err)
	}
	return j, nil
}

// stringifyKeys rewrites map keys to strings throughout the document.
// yaml/v3 only produces interface-keyed maps for non-string scalar keys;
// json.Marshal would reject those.
func stringifyKeys(doc any) any {
	switch node := doc.(type) {
	case map[string]any:
		for k, v := range node {
			node[k] = stringifyKeys(v)
		}
		return node
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, v := range node {
			out[fmt.Sprint(k)] = stringifyKeys(v)
		}
		return out
	case []any:
		for i, v := range node {
			node[i] = stringifyKeys(v)
		}
		return node
	}
	return doc
}
