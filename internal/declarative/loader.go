package declarative

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDirectory reads every .yaml/.yml file directly under dir (sorted by
// name) and returns the declared desired state. Each file holds exactly one
// document; unknown fields are rejected.
func LoadDirectory(dir string) (*DesiredState, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config directory: %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	state := &DesiredState{}
	for _, path := range paths {
		if err := loadFile(path, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// loadFile dispatches one document on its kind and decodes it strictly.
func loadFile(path string, state *DesiredState) error {
	data, err := os.ReadFile(path) //nolint:gosec // reading user-specified config files
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var header docHeader
	if err := yaml.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if header.APIVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, header.APIVersion, SupportedAPIVersion)
	}

	switch header.Kind {
	case KindConnectedSystem:
		var doc ConnectedSystemDoc
		if err := decodeStrict(path, data, &doc); err != nil {
			return err
		}
		state.Systems = append(state.Systems, doc)
	case KindSyncRule:
		var doc SyncRuleDoc
		if err := decodeStrict(path, data, &doc); err != nil {
			return err
		}
		state.Rules = append(state.Rules, doc)
	case KindMetaverseTypePolicy:
		var doc MetaverseTypePolicyDoc
		if err := decodeStrict(path, data, &doc); err != nil {
			return err
		}
		state.Policies = append(state.Policies, doc)
	default:
		return fmt.Errorf("%s: unknown kind %q", path, header.Kind)
	}
	return nil
}

func decodeStrict(path string, data []byte, target any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
