package domain

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID        string `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"email"`
	Password  string `db:"password" json:"password,omitempty"`
	Role      Role   `db:"role" json:"role"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Actor identifies the caller of a core operation. Every write is stamped
// with the actor's user id and authorized against its role.
type Actor struct {
	UserID string
	Role   Role
}
