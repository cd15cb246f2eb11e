package services

import (
	"testing"
	"time"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/errors"

	"github.com/stretchr/testify/require"
)

func TestAdminService_Listings(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x", "y", "z")
	befriend(t, f, "x", "y")
	g := f.group(t, "x", "y", "z")
	_, err := f.message.SendAttachments(ctx, SendAttachmentsCommand{
		ChatID: g.ID, SenderID: "y", Files: []contract.File{{Name: "a.txt", Data: []byte("a")}},
	})
	req.NoError(err)

	users, err := f.admin.ListUsers(ctx)
	req.NoError(err)
	req.Len(users, 3)
	for _, u := range users {
		switch u.ID {
		case "x", "y":
			req.Equal(1, u.Groups)
			req.Equal(1, u.Friends)
		case "z":
			req.Equal(1, u.Groups)
			req.Zero(u.Friends)
		}
	}

	chats, err := f.admin.ListChats(ctx)
	req.NoError(err)
	req.Len(chats, 2)
	for _, c := range chats {
		if c.GroupChat {
			req.Equal(3, c.TotalMembers)
			req.Equal(1, c.TotalMessages)
			req.NotNil(c.Creator)
			req.Equal("x", c.Creator.ID)
		} else {
			req.Zero(c.TotalMessages)
		}
	}

	messages, err := f.admin.ListMessages(ctx)
	req.NoError(err)
	req.Len(messages, 1)
	req.True(messages[0].GroupChat)
	req.Equal("name-y", messages[0].Sender.Name)
}

func TestAdminService_Stats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y")
	g := f.group(t, "x", "y")
	for i, age := range []time.Duration{time.Hour, 2 * time.Hour, 30 * time.Hour, 6*24*time.Hour + time.Hour, 8 * 24 * time.Hour} {
		req.NoError(f.messages.Store(chat.Message{
			ID:        string(rune('a' + i)),
			ChatID:    g.ID,
			SenderID:  "x",
			CreatedAt: now.Add(-age),
		}))
	}

	stats, err := f.admin.Stats(t.Context())

	req.NoError(err)
	req.Equal(1, stats.GroupsCount)
	req.Equal(2, stats.UsersCount)
	req.Equal(5, stats.MessagesCount)
	req.Equal(1, stats.TotalChatsCount)
	req.Equal([7]int{1, 0, 0, 0, 0, 1, 2}, stats.MessagesChart)
}

func TestAdminService_UpdateUser(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y")
	name, taken := "Renamed", "handle_y"

	user, err := f.admin.UpdateUser(t.Context(), "x", ProfileUpdate{Name: &name})
	req.NoError(err)
	req.Equal("Renamed", user.Name)

	_, err = f.admin.UpdateUser(t.Context(), "x", ProfileUpdate{Username: &taken})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestAdminService_DeleteUser(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x", "y", "z", "w")
	direct := befriend(t, f, "x", "y")
	g := f.group(t, "x", "y", "z")
	solo := f.group(t, "x")
	_, err := f.friends.SendRequest(ctx, "w", "x")
	req.NoError(err)
	outgoing, err := f.friends.SendRequest(ctx, "x", "z")
	req.NoError(err)
	_, err = f.message.SendAttachments(ctx, SendAttachmentsCommand{
		ChatID: g.ID, SenderID: "x", Files: []contract.File{{Name: "a.txt", Data: []byte("from x")}},
	})
	req.NoError(err)
	_, err = f.message.SendAttachments(ctx, SendAttachmentsCommand{
		ChatID: g.ID, SenderID: "y", Files: []contract.File{{Name: "b.txt", Data: []byte("from y")}},
	})
	req.NoError(err)

	req.NoError(f.admin.DeleteUser(ctx, "x"))

	_, err = f.users.Get("x")
	req.ErrorIs(err, errors.ErrUserNotFound)

	// The direct chat and the emptied group are gone, the group was handed over
	_, err = f.chats.Get(direct.ID)
	req.ErrorIs(err, errors.ErrChatNotFound)
	_, err = f.chats.Get(solo.ID)
	req.ErrorIs(err, errors.ErrChatNotFound)
	group, err := f.chats.Get(g.ID)
	req.NoError(err)
	req.Equal([]string{"y", "z"}, group.Members)
	req.Equal("y", group.AdminID)
	req.NoError(group.Check())

	// Only y's message and blob remain
	messages, total, err := f.messages.Page(g.ID, 1, chat.PageSize)
	req.NoError(err)
	req.Equal(1, total)
	req.Equal("y", messages[0].SenderID)
	req.Equal(1, blobCount(t, f.blobDir))

	inbox, err := f.requests.ListByReceiver("x")
	req.NoError(err)
	req.Empty(inbox)

	// What x sent is gone from the receiver's inbox too
	zInbox, err := f.requests.ListByReceiver("z")
	req.NoError(err)
	req.Empty(zInbox)
	_, err = f.requests.Get(outgoing.ID)
	req.ErrorIs(err, errors.ErrRequestNotFound)
	_, pending, err := f.requests.FindPending("x", "z")
	req.NoError(err)
	req.False(pending)

	err = f.admin.DeleteUser(ctx, "x")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestAdminService_RuntimeStats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.connect("x")
	f.connect("x")
	f.connect("y")

	stats := f.admin.RuntimeStats(t.Context())

	req.Equal(2, stats.OnlineUsers)
	req.Equal(3, stats.LiveConnections)
}
