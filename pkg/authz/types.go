package authz

import (
	"time"
)

// Kind tags the type half of a (type, id) reference. Assignees are users or
// groups; instance kinds are whatever the host application protects.
type Kind string

const (
	KindUser  Kind = "user"
	KindGroup Kind = "group"
)

// Ref identifies any addressable entity: a principal holding roles, or an
// instance being protected. The kind tag keeps a user id and a group id in
// different namespaces from ever being confused.
type Ref struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

// UserRef returns a Ref for a user principal.
func UserRef(id int64) Ref {
	return Ref{Kind: KindUser, ID: id}
}

// GroupRef returns a Ref for a group principal.
func GroupRef(id int64) Ref {
	return Ref{Kind: KindGroup, ID: id}
}

// Role is a named bundle of permissions. Names are unique across the
// system; permissions inside a role form a set.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasPermission reports whether the role bundles the given permission id.
func (r *Role) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// GlobalAssignment grants a role to an assignee with no object scope. Its
// permissions apply to every check for that assignee unless the target
// object opts out of global roles.
type GlobalAssignment struct {
	ID        int64     `json:"id"`
	Assignee  Ref       `json:"assignee"`
	RoleID    int64     `json:"role_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// LocalAssignment grants a role to an assignee scoped to one instance.
type LocalAssignment struct {
	ID        int64     `json:"id"`
	Assignee  Ref       `json:"assignee"`
	Instance  Ref       `json:"instance"`
	RoleID    int64     `json:"role_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// Group is a named collection of users. Groups hold roles and direct
// permissions exactly like users do.
type Group struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Grants is the Catalog's view of a single permission: who holds it
// directly, and which roles bundle it.
type Grants struct {
	Permission string
	UserIDs    map[int64]struct{}
	GroupIDs   map[int64]struct{}
	RoleIDs    map[int64]struct{}
}

// HeldByUser reports whether the user holds the permission directly.
func (g *Grants) HeldByUser(userID int64) bool {
	_, ok := g.UserIDs[userID]
	return ok
}

// HeldByGroup reports whether the group holds the permission directly.
func (g *Grants) HeldByGroup(groupID int64) bool {
	_, ok := g.GroupIDs[groupID]
	return ok
}

// BundledIn reports whether the role bundles the permission.
func (g *Grants) BundledIn(roleID int64) bool {
	_, ok := g.RoleIDs[roleID]
	return ok
}

// Identity is the host-supplied principal abstraction. An anonymous
// identity is denied every permission without any store lookup.
type Identity interface {
	Anonymous() bool
	PrincipalID() int64
}

// User is a minimal Identity for hosts that track users by id. The zero
// value is anonymous.
type User struct {
	ID int64
}

// Anonymous reports whether the user has no authenticated identity.
func (u User) Anonymous() bool { return u.ID == 0 }

// PrincipalID returns the user's stable id.
func (u User) PrincipalID() int64 { return u.ID }

// AnonymousUser is an Identity that is always denied.
var AnonymousUser = User{}

// Object scopes a permission check to one instance. The acquisition policy
// is part of the interface so that objects which don't need acquisition
// return the defaults explicitly rather than relying on absence.
type Object interface {
	ObjectRef() Ref

	// AcquireGlobalRoles reports whether globally held roles apply to
	// permission checks on this object. Default true; returning false
	// walls the object off from ambient global privilege.
	AcquireGlobalRoles() bool

	// AcquireFrom lists other objects whose local role assignments are
	// honored as if they applied to this object, in check order. The
	// order only affects short-circuit timing, not the outcome.
	AcquireFrom() []Ref
}

// DefaultAcquisition provides the default acquisition policy. Embed it in
// object types that inherit global roles and acquire from nothing.
type DefaultAcquisition struct{}

// AcquireGlobalRoles returns true.
func (DefaultAcquisition) AcquireGlobalRoles() bool { return true }

// AcquireFrom returns no acquisition targets.
func (DefaultAcquisition) AcquireFrom() []Ref { return nil }

// Resource is a ready-made Object for hosts that only need to name the
// instance being protected.
type Resource struct {
	DefaultAcquisition
	Kind Kind
	ID   int64
}

// ObjectRef returns the resource's reference.
func (r Resource) ObjectRef() Ref {
	return Ref{Kind: r.Kind, ID: r.ID}
}
