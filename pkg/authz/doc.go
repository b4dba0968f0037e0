// Package authz implements role-based authorization for the Grantor service.
//
// # Overview
//
// This package answers one question: does a principal (a user, possibly via
// the groups it belongs to) hold a named permission, optionally scoped to a
// target object? A grant can come from four independent sources:
//
//   1. A permission held directly by the user
//   2. A permission held directly by one of the user's groups
//   3. A role held globally (no object scope) that bundles the permission
//   4. A role held locally on the target object, or on an object the target
//      acquires local roles from
//
// The Resolver combines these sources with OR semantics and short-circuits
// on the first match. "Denied" is a valid false result, never an error; the
// only error paths are an undeclared permission (a caller bug, surfaced as
// NotFoundError) and backing-store failures, which propagate unchanged.
//
// # Components
//
//   Catalog        - resolves a permission id to its direct holders and the
//                    roles bundling it
//   Store          - role bundles plus global and local role assignments
//   GroupDirectory - group membership and the group-aware assignment queries
//   Resolver       - the decision procedure (HasPermission)
//   Guard          - HTTP middleware gating routes on a permission
//   Handlers       - the administrative HTTP surface over Store and Catalog
//
// All dependencies are constructor-injected; there is no package-level
// state. The Resolver is a pure read path and is safe for concurrent use.
//
// # Object scoping and acquisition
//
// Any value implementing Object can scope a check. The acquisition policy is
// explicit: an object reports whether globally held roles apply to it
// (AcquireGlobalRoles, default true) and which other objects' local roles it
// honors as its own (AcquireFrom, default none). Acquisition is single-level
// only; AcquireFrom targets are not followed transitively.
//
//	type document struct {
//		authz.DefaultAcquisition
//		id int64
//	}
//
//	func (d document) ObjectRef() authz.Ref {
//		return authz.Ref{Kind: "document", ID: d.id}
//	}
//
//	ok, err := resolver.HasPermission(ctx, user, "documents.change_document", doc)
package authz
