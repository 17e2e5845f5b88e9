package models

import "time"

// DefaultDisplayName is shown for users without a name or unknown to the directory.
const DefaultDisplayName = "User"

// User is the directory view of an account.
type User struct {
	ID           int        `db:"id" json:"id"`
	Name         *string    `db:"name" json:"-"`
	Phone        string     `db:"phone" json:"phone"`
	ProfileImage *string    `db:"profile_image" json:"profile_image,omitempty"`
	IsOnline     bool       `db:"is_online" json:"is_online"`
	LastSeen     *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}

// DisplayName falls back to DefaultDisplayName when no name is set.
func (u User) DisplayName() string {
	if u.Name == nil || *u.Name == "" {
		return DefaultDisplayName
	}
	return *u.Name
}

// UserView is the JSON shape returned to clients.
type UserView struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	ProfileImage *string    `json:"profile_image,omitempty"`
	IsOnline     bool       `json:"is_online"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
}

func (u User) View() UserView {
	return UserView{
		ID:           u.ID,
		Name:         u.DisplayName(),
		Phone:        u.Phone,
		ProfileImage: u.ProfileImage,
		IsOnline:     u.IsOnline,
		LastSeen:     u.LastSeen,
	}
}

// Profile is a partner's directory entry plus the block state between the two users.
type Profile struct {
	UserView
	IsBlocked bool `json:"is_blocked"`
}
