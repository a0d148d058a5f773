// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package model

import "time"

// Role is a coarse RBAC role for a User. The core only stores and
// compares roles; authentication/authorization proper is an external
// collaborator per spec.md §1.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// User is a control-plane account. PasswordHash is opaque to the core:
// it is produced and verified by the external auth subsystem.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEventType classifies an AuditRecord.
type AuditEventType string

const (
	AuditSiteCreate      AuditEventType = "site_create"
	AuditSiteUpdate      AuditEventType = "site_update"
	AuditSiteDelete      AuditEventType = "site_delete"
	AuditPathForceFailover AuditEventType = "path_force_failover"
	AuditRoutingPolicyCreate AuditEventType = "routing_policy_create"
	AuditRoutingPolicyUpdate AuditEventType = "routing_policy_update"
	AuditRoutingPolicyDelete AuditEventType = "routing_policy_delete"
	AuditRoutingPolicyToggle AuditEventType = "routing_policy_toggle"
	AuditNetworkPolicyCreate AuditEventType = "network_policy_create"
	AuditNetworkPolicyUpdate AuditEventType = "network_policy_update"
	AuditNetworkPolicyDelete AuditEventType = "network_policy_delete"
	AuditUserCreate      AuditEventType = "user_create"
	AuditUserUpdate      AuditEventType = "user_update"
	AuditUserDelete      AuditEventType = "user_delete"
)

// AuditSeverity is the severity of an AuditRecord.
type AuditSeverity string

const (
	AuditInfo  AuditSeverity = "info"
	AuditWarn  AuditSeverity = "warn"
	AuditError AuditSeverity = "error"
)

// AuditRecord is one append-only audit log row. Every mutation of
// Site/Path/Policy/User/Flow produces exactly one of these, per §3.
type AuditRecord struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id,omitempty"`
	EventType AuditEventType `json:"event_type"`
	Severity  AuditSeverity  `json:"severity"`
	Resource  string         `json:"resource,omitempty"`
	ResourceID string        `json:"resource_id,omitempty"`
	Mutation  bool           `json:"mutation"`
	Message   string         `json:"message,omitempty"`
}

// TopologyPolicy selects how the Mesh Manager derives the demanded
// Path set from the current Site set, per §4.6.
type TopologyPolicy struct {
	Kind   TopologyKind `json:"kind"`
	HubSiteID string    `json:"hub_site_id,omitempty"` // only for HubSpoke
}

type TopologyKind string

const (
	TopologyFullMesh TopologyKind = "full_mesh"
	TopologyHubSpoke TopologyKind = "hub_spoke"
)
