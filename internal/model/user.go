package model

// User is a household member. Only the display name is mutable.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
