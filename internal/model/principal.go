package model

type Role string

const (
	RoleClient Role = "client"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

// Principal is the authenticated caller, passed explicitly to every mutating
// operation. A zero Principal means unauthenticated.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) Authenticated() bool { return p.UserID != "" }

func (p Principal) Admin() bool { return p.Role == RoleAdmin }

// Party reports whether the principal is one of the booking's two parties.
func (p Principal) Party(b Booking) bool {
	return p.UserID == b.ClientID || p.UserID == b.ExpertID
}
