package domain

// Contact where an owner's reminders go
type Contact struct {
	OwnerID  string `db:"owner_id"`
	Username string `db:"username"`
	Email    string `db:"email"`
}
