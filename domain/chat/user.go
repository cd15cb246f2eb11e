package chat

import "time"

// User is owned by itself: only its profile update or an administrative
// delete cascade changes it.
type User struct {
	ID           string      `json:"_id"`
	Name         string      `json:"name"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-" cbor:"password_hash"`
	Avatar       *Attachment `json:"avatar,omitempty"`
	Bio          string      `json:"bio"`
	CreatedAt    time.Time   `json:"createdAt"`
}

func (u User) AvatarURL() string {
	if u.Avatar == nil {
		return ""
	}
	return u.Avatar.URL
}

func (u User) Summary() Sender {
	return Sender{ID: u.ID, Name: u.Name, Avatar: u.AvatarURL()}
}
