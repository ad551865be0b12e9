package model

import "time"

// User is a registered owner of expenses. LinkedChannelIdentity is the
// normalized chat identity (e.g. +51987654321) allowed to report for them.
type User struct {
	CreatedAt             time.Time
	UpdatedAt             time.Time
	LinkedAt              *time.Time
	ID                    string
	DisplayName           string
	LinkedChannelIdentity string
}

// Name returns the display name, or a generic greeting target.
func (u User) Name() string {
	if u.DisplayName == "" {
		return "Usuario"
	}
	return u.DisplayName
}
