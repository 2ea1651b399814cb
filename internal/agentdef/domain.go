// Package agentdef mirrors the relational credential/tool configuration onto
// a single YAML manifest on disk, so an operator can read or hand-edit the
// gateway's configuration without a database client. It is a durable cache,
// not a source of truth: the relational store remains authoritative, and the
// manifest is reconciled against it by Store.ReconcileEnvelopeKeys and
// Store.ReconcileDeks; server startup does not call them.
package agentdef

// Manifest is the top-level YAML document. Missing top-level keys are
// tolerated on read (the zero value of each section is an empty manifest)
// and produced on first write. Key ordering is not significant; nested maps
// are keyed by stable identifiers (alias, tool-group id, envelope-key id).
type Manifest struct {
	Encryption        EncryptionSection        `yaml:"encryption"`
	ToolConfiguration ToolConfigurationSection  `yaml:"tool_configuration"`
	Environment       EnvironmentSection        `yaml:"environment"`
	Identity          IdentitySection           `yaml:"identity"`
}

// EncryptionSection mirrors the envelope-key / DEK / alias hierarchy.
// EnvelopeKeys and Deks are keyed by their stable id (the ARN
// or local file path for an envelope key, the DEK's UUID string for a DEK);
// DekAliases is keyed by alias and points at a DEK id.
type EncryptionSection struct {
	EnvelopeKeys map[string]EnvelopeKeyEntry `yaml:"envelope_keys,omitempty"`
	Deks         map[string]DekEntry         `yaml:"deks,omitempty"`
	DekAliases   map[string]string           `yaml:"dek_aliases,omitempty"`
}

// EnvelopeKeyEntry projects one envelope-key row.
type EnvelopeKeyEntry struct {
	Kind   string `yaml:"kind"` // "kms" or "local_file"
	ARN    string `yaml:"arn,omitempty"`
	Region string `yaml:"region,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// DekEntry projects one data_encryption_keys row. EncryptedKey is the
// base64(STANDARD) wire form, never plaintext.
type DekEntry struct {
	EnvelopeKeyID string `yaml:"envelope_key_id"`
	EncryptedKey  string `yaml:"encrypted_key"`
}

// ToolConfigurationSection mirrors tool_groups, tool_instances, and
// MCP server registrations.
type ToolConfigurationSection struct {
	ToolGroups    map[string]ToolGroupConfig          `yaml:"tool_groups,omitempty"`
	ToolInstances map[string]ToolInstanceConfig        `yaml:"tool_instances,omitempty"`
	McpServers    map[string]McpServerConfig           `yaml:"mcp_servers,omitempty"`
	Deployments   map[string]ToolGroupDeploymentConfig `yaml:"deployments,omitempty"`
}

// ToolGroupConfig projects one tool_groups row.
type ToolGroupConfig struct {
	DisplayName                 string                 `yaml:"display_name"`
	ProviderTypeID               string                 `yaml:"provider_type_id"`
	CredentialControllerTypeID   string                 `yaml:"credential_controller_type_id"`
	ResourceServerCredentialID   string                 `yaml:"resource_server_credential_id"`
	UserCredentialID             string                 `yaml:"user_credential_id,omitempty"`
	StaticCredentialID           string                 `yaml:"static_credential_id,omitempty"`
	Status                       string                 `yaml:"status"`
	ReturnOnSuccessfulBrokering  map[string]interface{} `yaml:"return_on_successful_brokering,omitempty"`
}

// ToolInstanceConfig projects one tool_instances row: `(tool_group_id, tool_type_id)`.
type ToolInstanceConfig struct {
	ToolGroupID string `yaml:"tool_group_id"`
	ToolTypeID  string `yaml:"tool_type_id"`
}

// McpServerConfig is a lightweight projection of an MCP server
// registration. Registration bookkeeping lives elsewhere; this struct
// carries only what the manifest needs to round-trip, not a validated
// schema.
type McpServerConfig struct {
	ToolGroupID string                 `yaml:"tool_group_id"`
	Name        string                 `yaml:"name"`
	Command     string                 `yaml:"command,omitempty"`
	URL         string                 `yaml:"url,omitempty"`
	Metadata    map[string]interface{} `yaml:"metadata,omitempty"`
}

// ToolGroupDeploymentConfig records which environment/profile a tool group
// is active under — distinct from the tool group's own static definition
// (add_tool_group), since the same tool group definition can be deployed
// into more than one environment over its life.
type ToolGroupDeploymentConfig struct {
	ToolGroupID string                 `yaml:"tool_group_id"`
	Environment string                 `yaml:"environment"`
	Metadata    map[string]interface{} `yaml:"metadata,omitempty"`
}

// EnvironmentSection holds operator-managed runtime variables exposed to
// tool invocations (distinct from process env/config).
type EnvironmentSection struct {
	Variables map[string]string `yaml:"variables,omitempty"`
}

// IdentitySection holds operator-managed named secrets referenced by tool
// configuration (e.g. a webhook signing key a function controller reads by
// name rather than through the credential/broker pipeline).
type IdentitySection struct {
	Secrets map[string]string `yaml:"secrets,omitempty"`
}

func emptyManifest() *Manifest {
	return &Manifest{
		Encryption: EncryptionSection{
			EnvelopeKeys: map[string]EnvelopeKeyEntry{},
			Deks:         map[string]DekEntry{},
			DekAliases:   map[string]string{},
		},
		ToolConfiguration: ToolConfigurationSection{
			ToolGroups:    map[string]ToolGroupConfig{},
			ToolInstances: map[string]ToolInstanceConfig{},
			McpServers:    map[string]McpServerConfig{},
			Deployments:   map[string]ToolGroupDeploymentConfig{},
		},
		Environment: EnvironmentSection{Variables: map[string]string{}},
		Identity:    IdentitySection{Secrets: map[string]string{}},
	}
}

// clone returns a deep-enough copy of m: every map is reallocated so
// mutating the clone never mutates m. Leaf values are plain structs/strings
// so a shallow per-key copy suffices.
func (m *Manifest) clone() *Manifest {
	out := emptyManifest()
	for k, v := range m.Encryption.EnvelopeKeys {
		out.Encryption.EnvelopeKeys[k] = v
	}
	for k, v := range m.Encryption.Deks {
		out.Encryption.Deks[k] = v
	}
	for k, v := range m.Encryption.DekAliases {
		out.Encryption.DekAliases[k] = v
	}
	for k, v := range m.ToolConfiguration.ToolGroups {
		out.ToolConfiguration.ToolGroups[k] = v
	}
	for k, v := range m.ToolConfiguration.ToolInstances {
		out.ToolConfiguration.ToolInstances[k] = v
	}
	for k, v := range m.ToolConfiguration.McpServers {
		out.ToolConfiguration.McpServers[k] = v
	}
	for k, v := range m.ToolConfiguration.Deployments {
		out.ToolConfiguration.Deployments[k] = v
	}
	for k, v := range m.Environment.Variables {
		out.Environment.Variables[k] = v
	}
	for k, v := range m.Identity.Secrets {
		out.Identity.Secrets[k] = v
	}
	return out
}

// mergeManifest merges file into desired key-wise, per section: a key
// present in desired always wins (desired already reflects the operation
// being applied); a key present only in file survives. Returns a new
// Manifest; neither argument is mutated.
func mergeManifest(file, desired *Manifest) *Manifest {
	merged := desired.clone()

	for k, v := range file.Encryption.EnvelopeKeys {
		if _, ok := desired.Encryption.EnvelopeKeys[k]; !ok {
			merged.Encryption.EnvelopeKeys[k] = v
		}
	}
	for k, v := range file.Encryption.Deks {
		if _, ok := desired.Encryption.Deks[k]; !ok {
			merged.Encryption.Deks[k] = v
		}
	}
	for k, v := range file.Encryption.DekAliases {
		if _, ok := desired.Encryption.DekAliases[k]; !ok {
			merged.Encryption.DekAliases[k] = v
		}
	}
	for k, v := range file.ToolConfiguration.ToolGroups {
		if _, ok := desired.ToolConfiguration.ToolGroups[k]; !ok {
			merged.ToolConfiguration.ToolGroups[k] = v
		}
	}
	for k, v := range file.ToolConfiguration.ToolInstances {
		if _, ok := desired.ToolConfiguration.ToolInstances[k]; !ok {
			merged.ToolConfiguration.ToolInstances[k] = v
		}
	}
	for k, v := range file.ToolConfiguration.McpServers {
		if _, ok := desired.ToolConfiguration.McpServers[k]; !ok {
			merged.ToolConfiguration.McpServers[k] = v
		}
	}
	for k, v := range file.ToolConfiguration.Deployments {
		if _, ok := desired.ToolConfiguration.Deployments[k]; !ok {
			merged.ToolConfiguration.Deployments[k] = v
		}
	}
	for k, v := range file.Environment.Variables {
		if _, ok := desired.Environment.Variables[k]; !ok {
			merged.Environment.Variables[k] = v
		}
	}
	for k, v := range file.Identity.Secrets {
		if _, ok := desired.Identity.Secrets[k]; !ok {
			merged.Identity.Secrets[k] = v
		}
	}

	return merged
}
