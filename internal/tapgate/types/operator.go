package types

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleBouncer Role = "bouncer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleBouncer:
		return true
	}
	return false
}

// Operator is the authenticated caller of a verification request, as
// carried in the bearer token.
type Operator struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Category string `json:"category"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Role     Role   `json:"role"`
	Category string `json:"category"`
}
