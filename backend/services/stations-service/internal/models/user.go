package models

import "time"

// User is an account that can own stations and receive shares.
type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email,omitempty"`
	Name          string     `json:"name,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Summary drops the mutable profile fields.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// UserSummary is the shape returned by searches and access listings.
type UserSummary struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the signed-in user's own view.
type Profile struct {
	User
	OwnedStations  []Station `json:"ownedStations"`
	SharedStations []Station `json:"sharedStations"`
}

// PublicUser is what anyone may see about a user.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	Stations  []Station `json:"ownedStations"`
}

// UserStats aggregates a user's station counts.
type UserStats struct {
	TotalOwnedStations int `json:"totalOwnedStations"`
	PublicStations     int `json:"publicStations"`
	PrivateStations    int `json:"privateStations"`
	SharedStations     int `json:"sharedStations"`
	TotalLikes         int `json:"totalLikes"`
}

// ProfilePatch updates username and/or email.
type ProfilePatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// StationAccess lists who can read a station.
type StationAccess struct {
	StationID   string        `json:"id"`
	Name        string        `json:"name"`
	Visibility  Visibility    `json:"type"`
	Owner       UserSummary   `json:"owner"`
	SharedUsers []UserSummary `json:"sharedUsers"`
}
