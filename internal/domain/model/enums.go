package model

// ScopeType identifies the kind of entity a credential is attached to.
type ScopeType string

const (
	ScopeProject ScopeType = "Project"
	ScopeClient  ScopeType = "Client"
)

// Valid reports whether s is one of the supported scope types.
// Comparison is exact and case-sensitive.
func (s ScopeType) Valid() bool {
	return s == ScopeProject || s == ScopeClient
}

// Kind is a free-form category tag for a credential. The constants below are
// the well-known values; any non-empty tag is accepted.
type Kind string

const (
	KindRegistrar    Kind = "Registrar"
	KindHosting      Kind = "Hosting"
	KindControlPanel Kind = "ControlPanel"
	KindCDN          Kind = "CDN"
	KindAdminApp     Kind = "AdminApp"
	KindEmail        Kind = "Email"
	KindOther        Kind = "Other"
)

// Role is the host-system role of an authenticated actor.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleDirector Role = "Director"
	RoleOperator Role = "Operator"
	RoleFinance  Role = "Finance"
)

// IsElevated reports whether the role may create and update credentials.
func (r Role) IsElevated() bool {
	return r == RoleAdmin || r == RoleDirector
}
