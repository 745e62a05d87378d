// Package permissions implements the per-user permission masks.
//
// Each resource (user, payroll, company) has its own mask. A bit is set for
// every (scope, operation) pair the user holds, at index operation+offset
// where the offset is 0 for Any, 4 for SelfCompany and 8 for Owned. Callers
// work with Scope and Resource values; the bit layout stays in this package.
package permissions

import (
	"encoding/json"
	"fmt"
)

// Operation is the CRUD action being checked.
type Operation uint8

const (
	Create Operation = iota
	Read
	Update
	Delete
)

var operations = [...]Operation{Create, Read, Update, Delete}

func (o Operation) String() string {
	switch o {
	case Create:
		return "create"
	case Read:
		return "read"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("operation(%d)", uint8(o))
}

// Level is how far a grant reaches.
type Level uint8

const (
	// LevelAny allows the operation on every target.
	LevelAny Level = iota
	// LevelSelfCompany allows it on targets in the actor's company.
	LevelSelfCompany
	// LevelOwned allows it only on the actor itself.
	LevelOwned
)

func (l Level) offset() uint8 { return uint8(l) * 4 }

func (l Level) String() string {
	switch l {
	case LevelAny:
		return "any"
	case LevelSelfCompany:
		return "self_company"
	case LevelOwned:
		return "owned"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Scope pairs a level with an operation.
type Scope struct {
	Level Level
	Op    Operation
}

func Any(op Operation) Scope         { return Scope{Level: LevelAny, Op: op} }
func SelfCompany(op Operation) Scope { return Scope{Level: LevelSelfCompany, Op: op} }
func Owned(op Operation) Scope       { return Scope{Level: LevelOwned, Op: op} }

func (s Scope) String() string { return s.Level.String() + ":" + s.Op.String() }

// Mask is the bit set stored per resource. Only the low 12 bits are used,
// so the value always fits a signed SMALLINT column.
type Mask uint16

// Mask returns the single bit representing s.
func (s Scope) Mask() Mask {
	return Mask(1) << (uint8(s.Op) + s.Level.offset())
}

// Has reports whether the bit for s is set in m.
func (m Mask) Has(s Scope) bool { return m&s.Mask() != 0 }

// With returns m with the bits of the given scopes set.
func (m Mask) With(scopes ...Scope) Mask {
	for _, s := range scopes {
		m |= s.Mask()
	}
	return m
}

// Resource selects which mask a check applies to.
type Resource uint8

const (
	ResourceUser Resource = iota
	ResourcePayroll
	ResourceCompany
)

func (r Resource) String() string {
	switch r {
	case ResourceUser:
		return "user"
	case ResourcePayroll:
		return "payroll"
	case ResourceCompany:
		return "company"
	}
	return fmt.Sprintf("resource(%d)", uint8(r))
}

// Permission is the persisted grant set of one user.
type Permission struct {
	UserID  int64
	User    Mask
	Payroll Mask
	Company Mask
}

func (p *Permission) mask(r Resource) *Mask {
	switch r {
	case ResourceUser:
		return &p.User
	case ResourcePayroll:
		return &p.Payroll
	case ResourceCompany:
		return &p.Company
	}
	panic(fmt.Sprintf("permissions: unknown resource %d", r))
}

// Has reports whether p grants s on r. A nil permission grants nothing.
func (p *Permission) Has(r Resource, s Scope) bool {
	if p == nil {
		return false
	}
	return p.mask(r).Has(s)
}

// Grant sets the bits for the given scopes on r.
func (p *Permission) Grant(r Resource, scopes ...Scope) {
	m := p.mask(r)
	*m = m.With(scopes...)
}

// Role is the coarse tier a permission set is derived from.
type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleUser       Role = "User"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", s)
	}
	*r = role
	return nil
}

func all(level Level) []Scope {
	out := make([]Scope, 0, len(operations))
	for _, op := range operations {
		out = append(out, Scope{Level: level, Op: op})
	}
	return out
}

// FromRole derives the permission set for a freshly created user.
//
//	SuperAdmin: Any C,R,U,D on user, payroll and company
//	Admin:      SelfCompany C,R,U,D on user and payroll; SelfCompany R,U,D on company
//	User:       Owned R on user, payroll and company
//
// An unknown role yields an empty set.
func FromRole(userID int64, role Role) Permission {
	p := Permission{UserID: userID}
	switch role {
	case RoleSuperAdmin:
		p.Grant(ResourceUser, all(LevelAny)...)
		p.Grant(ResourcePayroll, all(LevelAny)...)
		p.Grant(ResourceCompany, all(LevelAny)...)
	case RoleAdmin:
		p.Grant(ResourceUser, all(LevelSelfCompany)...)
		p.Grant(ResourcePayroll, all(LevelSelfCompany)...)
		p.Grant(ResourceCompany, SelfCompany(Read), SelfCompany(Update), SelfCompany(Delete))
	case RoleUser:
		p.Grant(ResourceUser, Owned(Read))
		p.Grant(ResourcePayroll, Owned(Read))
		p.Grant(ResourceCompany, Owned(Read))
	}
	return p
}
