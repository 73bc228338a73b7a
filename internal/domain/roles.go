package domain

// Roles carried in registry-management bearer tokens.
const (
	RoleAdmin     = "admin"
	RoleRegistrar = "registrar"
)
