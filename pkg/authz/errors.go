package authz

import (
	"errors"
	"fmt"
)

// NotFoundError reports a referenced permission or role name that does not
// resolve. It signals a configuration or programming error (checking a
// permission that was never declared, assigning a role that doesn't exist)
// and is deliberately distinct from an access-denied outcome, which is a
// plain false result.
type NotFoundError struct {
	Kind string // "permission" or "role"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func permissionNotFound(id string) error {
	return &NotFoundError{Kind: "permission", Name: id}
}

func roleNotFound(name string) error {
	return &NotFoundError{Kind: "role", Name: name}
}

// UnknownKindError reports a Ref whose kind has no registered lookup.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown reference kind: %s", e.Kind)
}

// DanglingRefError reports a Ref whose kind resolved but whose id does not
// exist in the host system. The store surfaces this instead of silently
// coercing a bad reference into a valid assignment.
type DanglingRefError struct {
	Ref Ref
}

func (e *DanglingRefError) Error() string {
	return fmt.Sprintf("reference does not resolve: %s/%d", e.Ref.Kind, e.Ref.ID)
}
