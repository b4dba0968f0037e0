package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization decisions
	EventTypePermissionCheck EventType = "authz.permission_check"
	EventTypeAccessDenied    EventType = "authz.access_denied"

	// Role administration
	EventTypeRoleCreate        EventType = "authz.role_create"
	EventTypeRoleDelete        EventType = "authz.role_delete"
	EventTypeRoleAddPermission EventType = "authz.role_add_permission"

	// Permission administration
	EventTypePermissionDeclare EventType = "authz.permission_declare"
	EventTypePermissionGrant   EventType = "authz.permission_grant"
	EventTypePermissionRevoke  EventType = "authz.permission_revoke"

	// Assignment administration
	EventTypeGlobalRoleAssign   EventType = "authz.global_role_assign"
	EventTypeGlobalRoleUnassign EventType = "authz.global_role_unassign"
	EventTypeLocalRoleSet       EventType = "authz.local_role_set"
	EventTypeLocalRoleAssign    EventType = "authz.local_role_assign"
	EventTypeLocalRoleUnassign  EventType = "authz.local_role_unassign"

	// Group administration
	EventTypeGroupCreate       EventType = "authz.group_create"
	EventTypeGroupMemberAdd    EventType = "authz.group_member_add"
	EventTypeGroupMemberRemove EventType = "authz.group_member_remove"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor: the principal performing the administrative action or the
	// subject of the permission check
	ActorID *int64 `json:"actor_id,omitempty"`

	// Resource: role name, permission id, or (kind, id) reference string
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime  *time.Time
	EndTime    *time.Time
	ActorID    *int64
	EventTypes []EventType
	Status     *EventStatus
	Limit      int
	Offset     int
}
