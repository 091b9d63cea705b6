// Clasificación de roles. El núcleo no autentica: recibe una identidad ya
// verificada y solo decide si la operación le corresponde.
package auth

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

var ErrUnauthorized = errors.New("unauthorized")

type Identity struct {
	UserID int64
	Role   Role
}

func (i Identity) IsAdmin() bool    { return i.Role == RoleAdmin }
func (i Identity) IsCustomer() bool { return i.Role == RoleCustomer }

// ClassifyRole replica la regla de staff: autenticado y staff => ADMIN.
func ClassifyRole(isStaff bool) Role {
	if isStaff {
		return RoleAdmin
	}
	return RoleCustomer
}

func RequireAdmin(id Identity) error {
	if !id.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrUnauthorized)
	}
	return nil
}

func RequireCustomer(id Identity) error {
	if !id.IsCustomer() {
		return fmt.Errorf("%w: customer role required", ErrUnauthorized)
	}
	return nil
}
