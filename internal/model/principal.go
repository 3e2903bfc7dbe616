package model

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleOperator UserRole = "OPERATOR"
)

// Principal is the caller identity carried by an access token.
type Principal struct {
	Subject string
	Role    UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

func (p Principal) IsOperator() bool {
	return p.Role == UserRoleOperator || p.Role == UserRoleAdmin
}
