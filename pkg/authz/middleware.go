package authz

import (
	"context"
	"net/http"

	"github.com/grantorhq/grantor/pkg/audit"
	"github.com/grantorhq/grantor/pkg/contextkeys"
	"github.com/grantorhq/grantor/pkg/httputil"
)

// WithIdentity stores the authenticated principal on the context. The
// host's authentication layer calls this; the Guard reads it back.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextkeys.IdentityKey, identity)
}

// IdentityFrom returns the principal stored by WithIdentity. A request
// with no stored identity is anonymous.
func IdentityFrom(ctx context.Context) Identity {
	if identity, ok := ctx.Value(contextkeys.IdentityKey).(Identity); ok {
		return identity
	}
	return AnonymousUser
}

// ObjectFunc extracts the object a request targets, for object-scoped
// permission checks. Returning a nil Object checks without scope.
type ObjectFunc func(r *http.Request) (Object, error)

// Guard gates HTTP routes on permission checks. A denied check rejects
// the request with a generic 403 before any protected logic runs; the
// response never explains which role or membership was missing.
type Guard struct {
	resolver *Resolver
	auditLog audit.Logger
}

// NewGuard creates a guard over the resolver. auditLogger may be nil.
func NewGuard(resolver *Resolver, auditLogger audit.Logger) *Guard {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Guard{resolver: resolver, auditLog: auditLogger}
}

// RequirePermission requires the permission on every request, without
// object scope.
func (g *Guard) RequirePermission(permission string) func(http.Handler) http.Handler {
	return g.RequireObjectPermission(permission, nil)
}

// RequireObjectPermission requires the permission, scoped to the object
// extracted by objectOf when it is non-nil.
func (g *Guard) RequireObjectPermission(permission string, objectOf ObjectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.check(w, r, next, permission, objectOf)
		})
	}
}

// RequireMethodPermissions requires a different permission per HTTP
// method, e.g. {"GET": "documents.view_document", "POST":
// "documents.change_document"}. Methods with no entry pass through
// unchecked.
func (g *Guard) RequireMethodPermissions(permissions map[string]string) func(http.Handler) http.Handler {
	return g.RequireMethodObjectPermissions(permissions, nil)
}

// RequireMethodObjectPermissions is the object-scoped variant of
// RequireMethodPermissions.
func (g *Guard) RequireMethodObjectPermissions(permissions map[string]string, objectOf ObjectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			permission, ok := permissions[r.Method]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			g.check(w, r, next, permission, objectOf)
		})
	}
}

func (g *Guard) check(w http.ResponseWriter, r *http.Request, next http.Handler, permission string, objectOf ObjectFunc) {
	ctx := r.Context()
	identity := IdentityFrom(ctx)

	var obj Object
	if objectOf != nil {
		var err error
		obj, err = objectOf(r)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
	}

	allowed, err := g.resolver.HasPermission(ctx, identity, permission, obj)
	if err != nil {
		// NotFoundError here means the route declared an undeclared
		// permission; that is a server bug, not a denial.
		httputil.WriteInternalError(w, err)
		return
	}

	if !allowed {
		g.logDenied(ctx, r, identity, permission)
		httputil.WriteForbidden(w)
		return
	}

	next.ServeHTTP(w, r)
}

func (g *Guard) logDenied(ctx context.Context, r *http.Request, identity Identity, permission string) {
	event := audit.NewEvent(ctx, audit.EventTypeAccessDenied, audit.EventStatusDenied)
	if identity != nil && !identity.Anonymous() {
		actorID := identity.PrincipalID()
		event.ActorID = &actorID
	}
	event.ResourceType = "permission"
	event.ResourceID = permission
	event.Method = r.Method
	event.Path = r.URL.Path

	g.auditLog.Log(ctx, event)
}
