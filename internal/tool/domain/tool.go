// Package domain defines tool groups and tool instances: the deployment
// unit that binds a provider's credential controller and a resolved
// resource-server/user credential pair to a set of callable functions.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status discriminates a tool group's lifecycle. A tool group starts
// pending while its brokering flow is in flight and becomes active once a
// user credential has been materialized (or immediately, for credential
// controllers that need none).
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

// ToolGroup is one deployed integration instance: a resource-server
// credential, optionally a user credential, and the provider/credential
// controller pair that understands them.
type ToolGroup struct {
	ID                          uuid.UUID
	DisplayName                 string
	ProviderTypeID              string
	CredentialControllerTypeID  string
	ResourceServerCredentialID  uuid.UUID
	UserCredentialID            *uuid.UUID
	// StaticCredentialID binds the provider-global static credential an
	// invocation passes through to the function controller; nothing else in
	// the data model associates one. Nil means the provider's credential
	// controller needs no static configuration (true of static_no_auth,
	// the only static variant today).
	StaticCredentialID          *uuid.UUID
	Status                      Status
	ReturnOnSuccessfulBrokering json.RawMessage
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// Tool is one callable function enabled on a tool group — logically a
// (tool_group_id, tool_type_id) composite key, given its own surrogate id
// since InvokeFunction addresses it by a single tool instance id.
// Persisted in the tool_instances table.
type Tool struct {
	ID          uuid.UUID
	ToolGroupID uuid.UUID
	ToolTypeID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InvocationTarget is the joined view invoke_function's step 1 loads: a
// tool instance together with everything its owning tool group carries,
// flattened into one row so the pipeline never issues a second query to
// resolve routing.
type InvocationTarget struct {
	ToolID                     uuid.UUID
	ToolTypeID                 string
	ToolGroupID                uuid.UUID
	ProviderTypeID             string
	CredentialControllerTypeID string
	ResourceServerCredentialID uuid.UUID
	UserCredentialID           *uuid.UUID
	StaticCredentialID         *uuid.UUID
	Status                     Status
}
