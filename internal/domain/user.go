package domain

import "time"

// User represents an account that can own posts.
type User struct {
	ID           string
	Email        string
	Name         string
	Status       string
	PasswordHash []byte
	CreatedAt    time.Time
	// Posts holds ids of posts owned by the user, in insertion order.
	Posts []string
}
