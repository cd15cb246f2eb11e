package services

import (
	"time"

	"syncx/domain/chat"

	"github.com/samber/lo"
)

// Member is the public card of a user shown inside chat listings.
type Member struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

func toMember(u chat.User) Member {
	return Member{ID: u.ID, Name: u.Name, Username: u.Username, Avatar: u.AvatarURL()}
}

func toMembers(users []chat.User) []Member {
	return lo.Map(users, func(u chat.User, _ int) Member { return toMember(u) })
}

// ChatView is one entry of the caller's chat list. A direct chat is shown
// as the other party.
type ChatView struct {
	ID               string           `json:"_id"`
	GroupChat        bool             `json:"groupChat"`
	Avatar           []string         `json:"avatar"`
	Name             string           `json:"name"`
	Members          []Member         `json:"members"`
	GroupAdmin       string           `json:"groupAdmin,omitempty"`
	GroupImage       *chat.Attachment `json:"groupImage,omitempty"`
	GroupDescription string           `json:"groupDescription,omitempty"`
}

type GroupView struct {
	ID               string           `json:"_id"`
	GroupChat        bool             `json:"groupChat"`
	Name             string           `json:"name"`
	Avatar           []string         `json:"avatar"`
	GroupAdmin       string           `json:"groupAdmin"`
	GroupImage       *chat.Attachment `json:"groupImage,omitempty"`
	GroupDescription string           `json:"groupDescription,omitempty"`
}

// ChatDetails is a chat with its members optionally resolved to cards.
type ChatDetails struct {
	chat.Chat
	Populated []Member `json:"populatedMembers,omitempty"`
}

// groupAvatar is the group image, or the avatars of the first three
// members when the group has none.
func groupAvatar(c chat.Chat, members []chat.User) []string {
	if c.Image != nil && c.Image.URL != "" {
		return []string{c.Image.URL}
	}
	return lo.Map(lo.Slice(members, 0, 3), func(u chat.User, _ int) string { return u.AvatarURL() })
}

// Notification is a pending friend request as its receiver sees it.
type Notification struct {
	ID        string      `json:"_id"`
	Sender    chat.Sender `json:"sender"`
	CreatedAt time.Time   `json:"createdAt"`
}

// RespondResult tells the receiver what accepting or rejecting produced.
type RespondResult struct {
	SenderID string     `json:"senderId"`
	Accepted bool       `json:"accepted"`
	Chat     *chat.Chat `json:"chat,omitempty"`
}

type AdminUser struct {
	Member
	Bio       string    `json:"bio"`
	Groups    int       `json:"groups"`
	Friends   int       `json:"friends"`
	CreatedAt time.Time `json:"createdAt"`
}

type AdminChat struct {
	ID            string   `json:"_id"`
	Name          string   `json:"name"`
	GroupChat     bool     `json:"groupChat"`
	Avatar        []string `json:"avatar"`
	Members       []Member `json:"members"`
	Creator       *Member  `json:"creator,omitempty"`
	TotalMembers  int      `json:"totalMembers"`
	TotalMessages int      `json:"totalMessages"`
}

type AdminMessage struct {
	ID          string            `json:"_id"`
	Content     string            `json:"content"`
	Attachments []chat.Attachment `json:"attachments"`
	Sender      chat.Sender       `json:"sender"`
	ChatID      string            `json:"chat"`
	GroupChat   bool              `json:"groupChat"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// DashboardStats counts the stored data; MessagesChart holds the messages of
// the last 7 days, oldest day first.
type DashboardStats struct {
	GroupsCount     int    `json:"groupsCount"`
	UsersCount      int    `json:"usersCount"`
	MessagesCount   int    `json:"messagesCount"`
	TotalChatsCount int    `json:"totalChatsCount"`
	MessagesChart   [7]int `json:"messagesChart"`
}
