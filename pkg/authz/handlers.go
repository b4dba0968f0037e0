package authz

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/grantorhq/grantor/pkg/audit"
	"github.com/grantorhq/grantor/pkg/httputil"
)

// Handlers provides the administrative HTTP surface over the Store,
// Catalog, and GroupDirectory: read/CRUD scaffolding for operators, plus
// a check endpoint for debugging authorization state.
type Handlers struct {
	store    *Store
	catalog  *SQLCatalog
	groups   *GroupDirectory
	resolver *Resolver
	auditLog audit.Logger
}

// NewHandlers creates the admin handlers. auditLogger may be nil.
func NewHandlers(store *Store, catalog *SQLCatalog, groups *GroupDirectory, resolver *Resolver, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Handlers{
		store:    store,
		catalog:  catalog,
		groups:   groups,
		resolver: resolver,
		auditLog: auditLogger,
	}
}

// RegisterRoutes registers all authorization admin routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Role management
	router.HandleFunc("/authz/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/authz/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/authz/roles/{name}", h.GetRole).Methods("GET")
	router.HandleFunc("/authz/roles/{name}", h.DeleteRole).Methods("DELETE")
	router.HandleFunc("/authz/roles/{name}/permissions", h.AddRolePermission).Methods("POST")

	// Permission catalog
	router.HandleFunc("/authz/permissions", h.DeclarePermission).Methods("POST")
	router.HandleFunc("/authz/permissions/{id}/grants", h.GrantPermission).Methods("POST")
	router.HandleFunc("/authz/permissions/{id}/grants/{kind}/{assignee_id}", h.RevokePermission).Methods("DELETE")

	// Groups and membership
	router.HandleFunc("/authz/groups", h.CreateGroup).Methods("POST")
	router.HandleFunc("/authz/groups", h.ListGroups).Methods("GET")
	router.HandleFunc("/authz/groups/{id}/members", h.AddGroupMember).Methods("POST")
	router.HandleFunc("/authz/groups/{id}/members/{user_id}", h.RemoveGroupMember).Methods("DELETE")

	// Global role assignments
	router.HandleFunc("/authz/assignees/{kind}/{id}/global-roles", h.AssignGlobalRole).Methods("POST")
	router.HandleFunc("/authz/assignees/{kind}/{id}/global-roles", h.ListGlobalRoles).Methods("GET")
	router.HandleFunc("/authz/assignees/{kind}/{id}/global-roles/{role}", h.UnassignGlobalRole).Methods("DELETE")

	// Local role assignments
	router.HandleFunc("/authz/instances/{kind}/{id}/local-roles", h.WriteLocalRole).Methods("POST")
	router.HandleFunc("/authz/instances/{kind}/{id}/local-roles", h.ListLocalRoles).Methods("GET")
	router.HandleFunc("/authz/instances/{kind}/{id}/local-roles/{role}/{assignee_kind}/{assignee_id}", h.UnassignLocalRole).Methods("DELETE")

	// Permission checking
	router.HandleFunc("/authz/check", h.Check).Methods("POST")
}

// CreateRole creates a role with an optional initial permission bundle
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	role := &Role{Name: req.Name, Permissions: req.Permissions}
	if err := h.store.CreateRole(ctx, role); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeRoleCreate, "role", role.Name)
	httputil.WriteCreated(w, role)
}

// ListRoles lists roles, optionally filtered by ?name= substring
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// GetRole retrieves a role by name
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	role, err := h.store.GetRoleByName(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole deletes a role and all of its assignments
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	if err := h.store.DeleteRole(ctx, name); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeRoleDelete, "role", name)
	httputil.WriteNoContent(w)
}

// AddRolePermission adds a permission to a role's bundle
func (h *Handlers) AddRolePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	var req struct {
		Permission string `json:"permission"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" {
		httputil.WriteBadRequest(w, "permission is required")
		return
	}

	if err := h.store.AddPermission(ctx, name, req.Permission); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeRoleAddPermission, "role", name)
	httputil.WriteNoContent(w)
}

// DeclarePermission registers a permission id in the catalog
func (h *Handlers) DeclarePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ID == "" {
		httputil.WriteBadRequest(w, "id is required")
		return
	}

	if err := h.catalog.Declare(ctx, req.ID, req.Description); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypePermissionDeclare, "permission", req.ID)
	httputil.WriteCreated(w, map[string]string{"id": req.ID})
}

// GrantPermission grants a permission directly to a user or group,
// outside the role system
func (h *Handlers) GrantPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	permission := mux.Vars(r)["id"]

	var req struct {
		Assignee Ref `json:"assignee"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var err error
	switch req.Assignee.Kind {
	case KindUser:
		err = h.catalog.GrantToUser(ctx, req.Assignee.ID, permission)
	case KindGroup:
		err = h.catalog.GrantToGroup(ctx, req.Assignee.ID, permission)
	default:
		httputil.WriteBadRequest(w, "assignee kind must be user or group")
		return
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypePermissionGrant, "permission", permission)
	httputil.WriteNoContent(w)
}

// RevokePermission removes a direct permission grant
func (h *Handlers) RevokePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	permission := vars["id"]

	assigneeID, ok := httputil.ParsePathInt64OrError(w, r, "assignee_id")
	if !ok {
		return
	}

	var err error
	switch Kind(vars["kind"]) {
	case KindUser:
		err = h.catalog.RevokeFromUser(ctx, assigneeID, permission)
	case KindGroup:
		err = h.catalog.RevokeFromGroup(ctx, assigneeID, permission)
	default:
		httputil.WriteBadRequest(w, "assignee kind must be user or group")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypePermissionRevoke, "permission", permission)
	httputil.WriteNoContent(w)
}

// CreateGroup creates a group
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	group := &Group{Name: req.Name, Description: req.Description}
	if err := h.groups.CreateGroup(ctx, group); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeGroupCreate, "group", group.Name)
	httputil.WriteCreated(w, group)
}

// ListGroups lists all groups
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListGroups(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, groups)
}

// AddGroupMember adds a user to a group
func (h *Handlers) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.groups.AddMember(ctx, groupID, req.UserID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeGroupMemberAdd, "group", mux.Vars(r)["id"])
	httputil.WriteNoContent(w)
}

// RemoveGroupMember removes a user from a group
func (h *Handlers) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.groups.RemoveMember(ctx, groupID, userID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeGroupMemberRemove, "group", mux.Vars(r)["id"])
	httputil.WriteNoContent(w)
}

// AssignGlobalRole grants a role globally to the assignee in the path
func (h *Handlers) AssignGlobalRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assignee, ok := h.pathAssignee(w, r)
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.store.AssignGlobalRole(ctx, assignee, req.Role); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeGlobalRoleAssign, "role", req.Role)
	httputil.WriteNoContent(w)
}

// ListGlobalRoles lists the assignee's global assignments. With
// ?as_role=true the underlying roles are returned instead.
func (h *Handlers) ListGlobalRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assignee, ok := h.pathAssignee(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("as_role") == "true" {
		roles, err := h.store.GlobalRolesOf(ctx, assignee)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		httputil.WriteSuccess(w, roles)
		return
	}

	assignments, err := h.store.GlobalAssignments(ctx, assignee)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, assignments)
}

// UnassignGlobalRole removes a global role from the assignee in the path
func (h *Handlers) UnassignGlobalRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assignee, ok := h.pathAssignee(w, r)
	if !ok {
		return
	}
	role := mux.Vars(r)["role"]

	if err := h.store.UnassignGlobalRole(ctx, assignee, role); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeGlobalRoleUnassign, "role", role)
	httputil.WriteNoContent(w)
}

// WriteLocalRole writes a local role assignment on the instance in the
// path. Mode "assign" (the default) is additive get-or-create; mode "set"
// makes the assignee the role's only holder on the instance.
func (h *Handlers) WriteLocalRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	instance, ok := h.pathInstance(w, r)
	if !ok {
		return
	}

	var req struct {
		Assignee Ref    `json:"assignee"`
		Role     string `json:"role"`
		Mode     string `json:"mode"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var err error
	var eventType audit.EventType
	switch req.Mode {
	case "set":
		err = h.store.SetLocalRole(ctx, req.Assignee, instance, req.Role)
		eventType = audit.EventTypeLocalRoleSet
	case "", "assign":
		err = h.store.AssignLocalRole(ctx, req.Assignee, instance, req.Role)
		eventType = audit.EventTypeLocalRoleAssign
	default:
		httputil.WriteBadRequest(w, "mode must be set or assign")
		return
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logAdmin(ctx, r, eventType, "role", req.Role)
	httputil.WriteNoContent(w)
}

// ListLocalRoles lists local assignments on the instance in the path,
// optionally filtered by ?role= and ?assignee_kind=
func (h *Handlers) ListLocalRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	instance, ok := h.pathInstance(w, r)
	if !ok {
		return
	}

	assignments, err := h.store.LocalAssignments(ctx, instance, r.URL.Query().Get("role"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	if kind := r.URL.Query().Get("assignee_kind"); kind != "" {
		filtered := assignments[:0]
		for _, a := range assignments {
			if a.Assignee.Kind == Kind(kind) {
				filtered = append(filtered, a)
			}
		}
		assignments = filtered
	}

	httputil.WriteSuccess(w, assignments)
}

// UnassignLocalRole removes an exact local assignment
func (h *Handlers) UnassignLocalRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	instance, ok := h.pathInstance(w, r)
	if !ok {
		return
	}
	assigneeID, ok := httputil.ParsePathInt64OrError(w, r, "assignee_id")
	if !ok {
		return
	}
	assignee := Ref{Kind: Kind(vars["assignee_kind"]), ID: assigneeID}

	if err := h.store.UnassignLocalRole(ctx, assignee, instance, vars["role"]); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logAdmin(ctx, r, audit.EventTypeLocalRoleUnassign, "role", vars["role"])
	httputil.WriteNoContent(w)
}

// Check evaluates a permission check and returns the boolean outcome.
// This endpoint is for operators debugging authorization state; it
// reports the decision, not the reason.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID     int64  `json:"user_id"`
		Permission string `json:"permission"`
		Object     *struct {
			Kind               Kind  `json:"kind"`
			ID                 int64 `json:"id"`
			AcquireGlobalRoles *bool `json:"acquire_global_roles,omitempty"`
			AcquireFrom        []Ref `json:"acquire_from,omitempty"`
		} `json:"object,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" {
		httputil.WriteBadRequest(w, "permission is required")
		return
	}

	var obj Object
	if req.Object != nil {
		acquireGlobal := true
		if req.Object.AcquireGlobalRoles != nil {
			acquireGlobal = *req.Object.AcquireGlobalRoles
		}
		obj = checkObject{
			ref:           Ref{Kind: req.Object.Kind, ID: req.Object.ID},
			acquireGlobal: acquireGlobal,
			acquireFrom:   req.Object.AcquireFrom,
		}
	}

	allowed, err := h.resolver.HasPermission(ctx, User{ID: req.UserID}, req.Permission, obj)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"allowed": allowed})
}

// checkObject adapts a check request body to the Object interface.
type checkObject struct {
	ref           Ref
	acquireGlobal bool
	acquireFrom   []Ref
}

func (o checkObject) ObjectRef() Ref           { return o.ref }
func (o checkObject) AcquireGlobalRoles() bool { return o.acquireGlobal }
func (o checkObject) AcquireFrom() []Ref       { return o.acquireFrom }

func (h *Handlers) pathAssignee(w http.ResponseWriter, r *http.Request) (Ref, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return Ref{}, false
	}
	kind := Kind(mux.Vars(r)["kind"])
	if kind != KindUser && kind != KindGroup {
		httputil.WriteBadRequest(w, "assignee kind must be user or group")
		return Ref{}, false
	}
	return Ref{Kind: kind, ID: id}, true
}

func (h *Handlers) pathInstance(w http.ResponseWriter, r *http.Request) (Ref, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return Ref{}, false
	}
	return Ref{Kind: Kind(mux.Vars(r)["kind"]), ID: id}, true
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, err error) {
	if IsNotFound(err) {
		httputil.WriteNotFound(w, err.Error())
		return
	}
	httputil.WriteInternalError(w, err)
}

func (h *Handlers) logAdmin(ctx context.Context, r *http.Request, eventType audit.EventType, resourceType, resourceID string) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	if identity := IdentityFrom(ctx); !identity.Anonymous() {
		actorID := identity.PrincipalID()
		event.ActorID = &actorID
	}
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Method = r.Method
	event.Path = r.URL.Path

	h.auditLog.Log(ctx, event)
}
