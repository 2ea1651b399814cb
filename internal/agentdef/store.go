package agentdef

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/coregate/gateway/internal/errors"
)

// Store guards the in-memory snapshot of the manifest with a single mutex.
// Every mutation runs a full read-merge-write cycle against the file on
// disk, so a concurrent editor's changes to unrelated keys survive.
type Store struct {
	mu       sync.Mutex
	path     string
	manifest *Manifest
}

// Open loads path into a new Store, tolerating a missing file (an empty
// manifest is used and the file is created on the first mutation).
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	m, err := s.readFile()
	if err != nil {
		return nil, err
	}
	s.manifest = m
	return s, nil
}

// Snapshot returns a deep copy of the current in-memory manifest. Safe for
// concurrent use; callers must not assume the result stays current.
func (s *Store) Snapshot() *Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest.clone()
}

func (s *Store) readFile() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return emptyManifest(), nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read agent definition file")
	}

	m := emptyManifest()
	if len(data) == 0 {
		return m, nil
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse agent definition file")
	}
	if m.Encryption.EnvelopeKeys == nil {
		m.Encryption.EnvelopeKeys = map[string]EnvelopeKeyEntry{}
	}
	if m.Encryption.Deks == nil {
		m.Encryption.Deks = map[string]DekEntry{}
	}
	if m.Encryption.DekAliases == nil {
		m.Encryption.DekAliases = map[string]string{}
	}
	if m.ToolConfiguration.ToolGroups == nil {
		m.ToolConfiguration.ToolGroups = map[string]ToolGroupConfig{}
	}
	if m.ToolConfiguration.ToolInstances == nil {
		m.ToolConfiguration.ToolInstances = map[string]ToolInstanceConfig{}
	}
	if m.ToolConfiguration.McpServers == nil {
		m.ToolConfiguration.McpServers = map[string]McpServerConfig{}
	}
	if m.ToolConfiguration.Deployments == nil {
		m.ToolConfiguration.Deployments = map[string]ToolGroupDeploymentConfig{}
	}
	if m.Environment.Variables == nil {
		m.Environment.Variables = map[string]string{}
	}
	if m.Identity.Secrets == nil {
		m.Identity.Secrets = map[string]string{}
	}
	return m, nil
}

// writeFile serializes m and replaces s.path atomically: write to a
// sibling temp file, then rename over the target, so a crash mid-write
// never leaves a truncated manifest for the next reader.
func (s *Store) writeFile(m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return apperrors.Wrap(err, "failed to serialize agent definition")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".agentdef-*.tmp")
	if err != nil {
		return apperrors.Wrap(err, "failed to create temp agent definition file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, "failed to write agent definition file")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, "failed to close agent definition file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return apperrors.Wrap(err, "failed to set agent definition file permissions")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return apperrors.Wrap(err, "failed to replace agent definition file")
	}
	return nil
}

// mutate implements the read-merge-write save discipline:
//  1. acquire the in-memory lock (the method signature here, via s.mu)
//  2. re-read the on-disk file into a second snapshot
//  3. merge the file snapshot into the in-memory snapshot (field/key-wise)
//  4. serialize the merged value back to disk
//  5. release the lock
//
// op is applied twice: once to a clone of the current in-memory snapshot
// before the merge (so its fields count as "explicitly set" and win over
// stale file content), and once more to the merged result (so a removal or
// rename stays authoritative even against a key a concurrent writer left
// untouched in the file). Applying an add/update/remove twice is
// idempotent, so this is safe.
func (s *Store) mutate(op func(m *Manifest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	desired := s.manifest.clone()
	op(desired)

	file, err := s.readFile()
	if err != nil {
		return err
	}

	merged := mergeManifest(file, desired)
	op(merged)

	if err := s.writeFile(merged); err != nil {
		return err
	}
	s.manifest = merged
	return nil
}
