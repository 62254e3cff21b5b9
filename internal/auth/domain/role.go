package domain

import "time"

// Role codes.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Role struct {
	ID        string
	Code      string
	CreatedAt time.Time
}
