package agentdef

import (
	"log/slog"

	validation "github.com/jellydator/validation"

	apperrors "github.com/coregate/gateway/internal/errors"
	appvalidation "github.com/coregate/gateway/internal/validation"
)

// AddEnvelopeKey records a new envelope key.
// id is the stable key id the rest of the system uses: the ARN for a KMS
// key, the file path for a local one.
func (s *Store) AddEnvelopeKey(id string, entry EnvelopeKeyEntry) error {
	if id == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "envelope key id must not be empty")
	}
	return s.mutate(func(m *Manifest) {
		m.Encryption.EnvelopeKeys[id] = entry
	})
}

// RemoveEnvelopeKey deletes an envelope key entry. It does not cascade to
// DEKs referencing it — the relational store enforces that invariant; the
// manifest mirrors whatever the database allowed.
func (s *Store) RemoveEnvelopeKey(id string) error {
	return s.mutate(func(m *Manifest) {
		delete(m.Encryption.EnvelopeKeys, id)
	})
}

// AddDek records a new data encryption key and, if alias is non-empty,
// binds it under that alias in the same mutation.
func (s *Store) AddDek(dekID, envelopeKeyID, alias, encryptedKeyB64 string) error {
	if dekID == "" || envelopeKeyID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "dek id and envelope key id must not be empty")
	}
	if err := appvalidation.WrapValidationError(validation.Validate(
		encryptedKeyB64, validation.Required, appvalidation.Base64,
	)); err != nil {
		return err
	}
	if alias != "" {
		if err := appvalidation.WrapValidationError(validation.Validate(
			alias, appvalidation.DekAlias,
		)); err != nil {
			return err
		}
	}
	return s.mutate(func(m *Manifest) {
		m.Encryption.Deks[dekID] = DekEntry{
			EnvelopeKeyID: envelopeKeyID,
			EncryptedKey:  encryptedKeyB64,
		}
		if alias != "" {
			m.Encryption.DekAliases[alias] = dekID
		}
	})
}

// RemoveDek deletes a DEK entry and every alias bound to it (aliases
// cascade on DEK delete).
func (s *Store) RemoveDek(dekID string) error {
	return s.mutate(func(m *Manifest) {
		delete(m.Encryption.Deks, dekID)
		for alias, id := range m.Encryption.DekAliases {
			if id == dekID {
				delete(m.Encryption.DekAliases, alias)
			}
		}
	})
}

// RenameDek moves an alias binding from oldAlias to newAlias without
// touching the underlying DEK entry.
func (s *Store) RenameDek(oldAlias, newAlias string) error {
	if oldAlias == "" || newAlias == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "alias names must not be empty")
	}
	// op runs once against the pre-merge snapshot and once more against the
	// merged result (see Store.mutate); only the outcome of the final call
	// determines what was actually persisted, so rerr is reset on each call.
	var rerr error
	err := s.mutate(func(m *Manifest) {
		rerr = nil
		dekID, ok := m.Encryption.DekAliases[oldAlias]
		if !ok {
			rerr = apperrors.Wrap(apperrors.ErrNotFound, "alias not found: "+oldAlias)
			return
		}
		delete(m.Encryption.DekAliases, oldAlias)
		m.Encryption.DekAliases[newAlias] = dekID
	})
	if err != nil {
		return err
	}
	return rerr
}

// AddToolGroup records a tool group's static definition, keyed by id.
func (s *Store) AddToolGroup(id string, cfg ToolGroupConfig) error {
	if id == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "tool group id must not be empty")
	}
	return s.mutate(func(m *Manifest) {
		m.ToolConfiguration.ToolGroups[id] = cfg
	})
}

// UpdateToolGroup replaces an existing tool group's definition wholesale.
func (s *Store) UpdateToolGroup(id string, cfg ToolGroupConfig) error {
	return s.mutate(func(m *Manifest) {
		m.ToolConfiguration.ToolGroups[id] = cfg
	})
}

// AddToolGroupDeployment records which environment/profile a tool group is
// deployed under, distinct from the tool group's own static definition
// since a single definition can be deployed into more than one environment
// over its life.
func (s *Store) AddToolGroupDeployment(deploymentID string, cfg ToolGroupDeploymentConfig) error {
	if deploymentID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "deployment id must not be empty")
	}
	return s.mutate(func(m *Manifest) {
		m.ToolConfiguration.Deployments[deploymentID] = cfg
	})
}

// AddToolInstance records a `(tool_group_id, tool_type_id)` binding.
func (s *Store) AddToolInstance(id string, cfg ToolInstanceConfig) error {
	if id == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "tool instance id must not be empty")
	}
	return s.mutate(func(m *Manifest) {
		m.ToolConfiguration.ToolInstances[id] = cfg
	})
}

// AddMcpServer records an MCP server registration. Bookkeeping beyond
// round-tripping this entry lives outside this package.
func (s *Store) AddMcpServer(id string, cfg McpServerConfig) error {
	if id == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "mcp server id must not be empty")
	}
	return s.mutate(func(m *Manifest) {
		m.ToolConfiguration.McpServers[id] = cfg
	})
}

// SetSecret upserts a named secret under the identity section.
func (s *Store) SetSecret(name, value string) error {
	if name == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "secret name must not be empty")
	}
	return s.mutate(func(m *Manifest) {
		m.Identity.Secrets[name] = value
	})
}

// RemoveSecret deletes a named secret.
func (s *Store) RemoveSecret(name string) error {
	return s.mutate(func(m *Manifest) {
		delete(m.Identity.Secrets, name)
	})
}

// SetVariable upserts a named environment variable.
func (s *Store) SetVariable(name, value string) error {
	if name == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "variable name must not be empty")
	}
	return s.mutate(func(m *Manifest) {
		m.Environment.Variables[name] = value
	})
}

// RemoveVariable deletes a named environment variable.
func (s *Store) RemoveVariable(name string) error {
	return s.mutate(func(m *Manifest) {
		delete(m.Environment.Variables, name)
	})
}

// ReconcileEnvelopeKeys ensures the manifest has an entry for every
// DB-sourced envelope key the relational store expects. Keys missing
// from known are left in place and logged as orphans rather than deleted:
// an orphaned manifest entry may be a local operator edit the database has
// not caught up with, and deleting it on a guess is the worse failure mode.
func (s *Store) ReconcileEnvelopeKeys(known map[string]EnvelopeKeyEntry, logger *slog.Logger) error {
	return s.mutate(func(m *Manifest) {
		for id, entry := range known {
			if _, ok := m.Encryption.EnvelopeKeys[id]; !ok {
				m.Encryption.EnvelopeKeys[id] = entry
			}
		}
		if logger != nil {
			for id := range m.Encryption.EnvelopeKeys {
				if _, ok := known[id]; !ok {
					logger.Warn("envelope key present in agent definition but not in database", slog.String("envelope_key_id", id))
				}
			}
		}
	})
}

// ReconcileDeks is ReconcileEnvelopeKeys's counterpart for DEKs.
func (s *Store) ReconcileDeks(known map[string]DekEntry, logger *slog.Logger) error {
	return s.mutate(func(m *Manifest) {
		for id, entry := range known {
			if _, ok := m.Encryption.Deks[id]; !ok {
				m.Encryption.Deks[id] = entry
			}
		}
		if logger != nil {
			for id := range m.Encryption.Deks {
				if _, ok := known[id]; !ok {
					logger.Warn("dek present in agent definition but not in database", slog.String("dek_id", id))
				}
			}
		}
	})
}
