package jwt

type Role int

type User struct {
	Id    string `json:"id"`
	Email string `json:"email"`
}

// Claims is the typed view of a verified access token.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt int64
}
