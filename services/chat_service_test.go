package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/domain/event"
	"syncx/errors"

	"github.com/stretchr/testify/require"
)

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestChatService_CreateGroup(t *testing.T) {
	f := newFixture(t)
	f.user(t, "x", "y", "z")

	t.Run("creator becomes admin and members are notified", func(t *testing.T) {
		req := require.New(t)
		x, y := f.connect("x"), f.connect("y")
		drain(x)
		drain(y)

		g, err := f.chat.CreateGroup(t.Context(), "x", "friends", []string{"y", "z", "y"})

		req.NoError(err)
		req.Equal("x", g.AdminID)
		req.Equal([]string{"y", "z", "x"}, g.Members)
		req.NoError(g.Check())

		// The creator gets the welcome alert only, others also refetch
		req.Equal([]event.Kind{event.Alert}, kinds(drain(x)))
		yEvents := drain(y)
		req.Equal([]event.Kind{event.Alert, event.RefetchChats}, kinds(yEvents))
		req.Equal([]string{"Welcome to friends group"}, alerts(yEvents))
	})

	t.Run("unknown member is not found", func(t *testing.T) {
		req := require.New(t)
		_, err := f.chat.CreateGroup(t.Context(), "x", "friends", []string{"ghost"})
		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("a group without name is invalid", func(t *testing.T) {
		req := require.New(t)
		_, err := f.chat.CreateGroup(t.Context(), "x", "", []string{"y"})
		req.ErrorIs(err, errors.ErrValidation)
	})
}

// Given [X,Y,Z], removing Y would leave two members; once W joins it works.
func TestChatService_Scenario_RemoveMemberFloor(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x", "y", "z", "w")

	g := f.group(t, "x", "y", "z")
	req.Len(g.Members, 3)
	req.Equal("x", g.AdminID)

	_, err := f.chat.RemoveMember(ctx, "x", g.ID, "y")
	req.ErrorIs(err, errors.ErrMinimumMembers)

	g, err = f.chat.AddMembers(ctx, "x", g.ID, []string{"w"})
	req.NoError(err)
	req.Len(g.Members, 4)

	g, err = f.chat.RemoveMember(ctx, "x", g.ID, "y")
	req.NoError(err)
	req.ElementsMatch([]string{"x", "z", "w"}, g.Members)
	req.Equal("x", g.AdminID)

	stored, err := f.chats.Get(g.ID)
	req.NoError(err)
	req.Equal(g.Members, stored.Members)
}

func TestChatService_RemoveMember_Notifications(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y", "z", "w")
	g := f.group(t, "x", "y", "z", "w")
	y, z := f.connect("y"), f.connect("z")

	_, err := f.chat.RemoveMember(t.Context(), "x", g.ID, "y")
	req.NoError(err)

	// The removed member only refreshes, the remaining ones are alerted too
	req.Equal([]event.Kind{event.RefetchChats}, kinds(drain(y)))
	zEvents := drain(z)
	req.Equal([]event.Kind{event.Alert, event.RefetchChats}, kinds(zEvents))
	req.Equal([]string{"name-y has been removed from the group"}, alerts(zEvents))
}

func TestChatService_RemoveMember_Rejections(t *testing.T) {
	f := newFixture(t)
	f.user(t, "x", "y", "z", "w")
	g := f.group(t, "x", "y", "z", "w")

	tests := []struct {
		name   string
		caller string
		target string
		err    error
	}{
		{"caller not admin", "y", "z", errors.ErrNotAdmin},
		{"target is admin", "x", "x", errors.ErrTargetIsAdmin},
		{"target not member", "x", "q", errors.ErrTargetNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := f.chat.RemoveMember(t.Context(), tt.caller, g.ID, tt.target)
			req.ErrorIs(err, tt.err)

			stored, err := f.chats.Get(g.ID)
			req.NoError(err)
			req.Len(stored.Members, 4)
		})
	}

	t.Run("unknown chat", func(t *testing.T) {
		req := require.New(t)
		_, err := f.chat.RemoveMember(t.Context(), "x", "nope", "y")
		req.ErrorIs(err, errors.ErrChatNotFound)
	})
}

func TestChatService_AddMembers(t *testing.T) {
	f := newFixture(t)
	f.user(t, "x", "y", "z", "w")
	g := f.group(t, "x", "y")

	t.Run("only the admin adds", func(t *testing.T) {
		req := require.New(t)
		_, err := f.chat.AddMembers(t.Context(), "y", g.ID, []string{"z"})
		req.ErrorIs(err, errors.ErrNotAdmin)
	})

	t.Run("unknown users are not found", func(t *testing.T) {
		req := require.New(t)
		_, err := f.chat.AddMembers(t.Context(), "x", g.ID, []string{"z", "ghost"})
		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("present members are filtered and everybody is alerted", func(t *testing.T) {
		req := require.New(t)
		y := f.connect("y")

		updated, err := f.chat.AddMembers(t.Context(), "x", g.ID, []string{"y", "z", "w"})

		req.NoError(err)
		req.Equal([]string{"y", "x", "z", "w"}, updated.Members)
		req.Equal([]string{"name-z, name-w has been added in the group"}, alerts(drain(y)))
	})

	t.Run("nobody new means no alert", func(t *testing.T) {
		req := require.New(t)
		y := f.connect("y")

		updated, err := f.chat.AddMembers(t.Context(), "x", g.ID, []string{"z", "w"})

		req.NoError(err)
		req.Len(updated.Members, 4)
		events := drain(y)
		req.Empty(alerts(events))
		req.Equal([]event.Kind{event.RefetchChats}, kinds(events))
	})
}

func TestChatService_AddMembers_Limit(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ids := make([]string, 0, chat.MaxMembers)
	for i := 0; i < chat.MaxMembers; i++ {
		ids = append(ids, fmt.Sprintf("u%03d", i))
	}
	f.user(t, ids...)
	f.user(t, "extra")

	g := f.group(t, ids[0], ids[1:]...)
	req.Len(g.Members, chat.MaxMembers)

	_, err := f.chat.AddMembers(t.Context(), ids[0], g.ID, []string{"extra"})
	req.ErrorIs(err, errors.ErrLimitExceeded)
}

// Concurrent additions on one chat never lose an update.
func TestChatService_AddMembers_Concurrent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x")
	g := f.group(t, "x")

	const n = 30
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("m%02d", i)
		f.user(t, id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.chat.AddMembers(context.Background(), "x", g.ID, []string{id})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	stored, err := f.chats.Get(g.ID)
	req.NoError(err)
	req.Len(stored.Members, n+1)
	req.NoError(stored.Check())
}

// Given [X,Y] with X admin, dropping the role hands it to Y.
func TestChatService_Scenario_RemoveAdminRole(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y")
	g := f.group(t, "x", "y")
	y := f.connect("y")

	g, err := f.chat.RemoveAdminRole(t.Context(), "x", g.ID)

	req.NoError(err)
	req.Equal("y", g.AdminID)
	req.True(g.IsMember("x"))
	req.Equal([]string{"name-y is now the group admin"}, alerts(drain(y)))
}

func TestChatService_RemoveAdminRole_SoleMember(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x")
	g := f.group(t, "x")

	_, err := f.chat.RemoveAdminRole(t.Context(), "x", g.ID)
	req.ErrorIs(err, errors.ErrNoEligibleSuccessor)
}

func TestChatService_AssignAdmin(t *testing.T) {
	f := newFixture(t)
	f.user(t, "x", "y", "z")
	g := f.group(t, "x", "y", "z")

	t.Run("already admin", func(t *testing.T) {
		req := require.New(t)
		_, err := f.chat.AssignAdmin(t.Context(), "x", g.ID, "x")
		req.ErrorIs(err, errors.ErrAlreadyAdmin)
	})

	t.Run("target must be a member", func(t *testing.T) {
		req := require.New(t)
		_, err := f.chat.AssignAdmin(t.Context(), "x", g.ID, "nobody")
		req.ErrorIs(err, errors.ErrTargetNotMember)
	})

	t.Run("old admin keeps membership", func(t *testing.T) {
		req := require.New(t)
		z := f.connect("z")

		updated, err := f.chat.AssignAdmin(t.Context(), "x", g.ID, "z")

		req.NoError(err)
		req.Equal("z", updated.AdminID)
		req.True(updated.IsMember("x"))
		req.Equal([]string{"name-z has been promoted to group admin"}, alerts(drain(z)))
	})
}

// Given X alone in G with history, leaving deletes G and its messages.
func TestChatService_Scenario_LeaveAsSoleMember(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x")
	g := f.group(t, "x")
	_, err := f.message.SendAttachments(ctx, SendAttachmentsCommand{
		ChatID:   g.ID,
		SenderID: "x",
		Files:    []contract.File{{Name: "note.txt", Data: []byte("hello there")}},
	})
	req.NoError(err)
	req.Equal(1, blobCount(t, f.blobDir))
	x := f.connect("x")

	outcome, err := f.chat.LeaveGroup(ctx, "x", g.ID)

	req.NoError(err)
	req.True(outcome.Deleted)
	_, err = f.chats.Get(g.ID)
	req.ErrorIs(err, errors.ErrChatNotFound)
	messages, total, err := f.messages.Page(g.ID, 1, chat.PageSize)
	req.NoError(err)
	req.Empty(messages)
	req.Zero(total)
	req.Zero(blobCount(t, f.blobDir))
	req.Equal([]event.Kind{event.RefetchChats}, kinds(drain(x)))
}

func TestChatService_LeaveGroup_AsAdmin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y", "z")
	g := f.group(t, "x", "y", "z")
	x, y := f.connect("x"), f.connect("y")

	outcome, err := f.chat.LeaveGroup(t.Context(), "x", g.ID)

	req.NoError(err)
	req.Equal("y", outcome.NewAdmin)
	stored, err := f.chats.Get(g.ID)
	req.NoError(err)
	req.Equal([]string{"y", "z"}, stored.Members)
	req.Equal("y", stored.AdminID)

	req.Equal([]string{"name-y is now the group admin", "name-x has left the group"}, alerts(drain(y)))
	req.Equal([]event.Kind{event.RefetchChats}, kinds(drain(x)))
}

func TestChatService_LeaveGroup_NotMember(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y", "q")
	g := f.group(t, "x", "y")

	_, err := f.chat.LeaveGroup(t.Context(), "q", g.ID)
	req.ErrorIs(err, errors.ErrNotMember)
}

func TestChatService_DeleteGroup(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x", "y", "z", "w")

	small := f.group(t, "x", "y", "z")
	err := f.chat.DeleteGroup(ctx, "x", small.ID)
	req.ErrorIs(err, errors.ErrMinimumMembers)

	g := f.group(t, "x", "y", "z", "w")
	_, err = f.message.SendAttachments(ctx, SendAttachmentsCommand{
		ChatID:   g.ID,
		SenderID: "y",
		Files:    []contract.File{{Name: "a.txt", Data: []byte("first")}, {Name: "b.txt", Data: []byte("second")}},
	})
	req.NoError(err)
	err = f.chat.DeleteGroup(ctx, "y", g.ID)
	req.ErrorIs(err, errors.ErrNotAdmin)
	w := f.connect("w")

	req.NoError(f.chat.DeleteGroup(ctx, "x", g.ID))

	_, err = f.chats.Get(g.ID)
	req.ErrorIs(err, errors.ErrChatNotFound)
	req.Zero(blobCount(t, f.blobDir))
	req.Equal([]event.Kind{event.RefetchChats}, kinds(drain(w)))
}

func TestChatService_EditGroup(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x", "y")
	g := f.group(t, "x", "y")
	name, description := "renamed", "a group"

	first, err := f.chat.EditGroup(ctx, "x", g.ID, EditGroupCommand{
		Name:        &name,
		Description: &description,
		Image:       &contract.File{Name: "one.png", Data: pngOf("first image")},
	})
	req.NoError(err)
	req.Equal("renamed", first.Name)
	req.Equal("a group", first.Description)
	req.NotNil(first.Image)
	req.Equal(1, blobCount(t, f.blobDir))

	// Replacing the image deletes the previous blob
	y := f.connect("y")
	second, err := f.chat.EditGroup(ctx, "x", g.ID, EditGroupCommand{
		Image: &contract.File{Name: "two.png", Data: pngOf("second image")},
	})
	req.NoError(err)
	req.NotEqual(first.Image.PublicID, second.Image.PublicID)
	req.Equal(1, blobCount(t, f.blobDir))
	req.Equal([]string{"Group details have been updated"}, alerts(drain(y)))

	// A rejected edit drops the uploaded image
	_, err = f.chat.EditGroup(ctx, "y", g.ID, EditGroupCommand{
		Image: &contract.File{Name: "three.png", Data: pngOf("third image")},
	})
	req.ErrorIs(err, errors.ErrNotAdmin)
	req.Equal(1, blobCount(t, f.blobDir))

	// Only images are accepted as group pictures
	_, err = f.chat.EditGroup(ctx, "x", g.ID, EditGroupCommand{
		Image: &contract.File{Name: "notes.png", Data: []byte("meeting notes")},
	})
	req.ErrorIs(err, errors.ErrNotAnImage)
	req.Equal(1, blobCount(t, f.blobDir))
}

func TestChatService_RenameGroup(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y")
	g := f.group(t, "x", "y")
	y := f.connect("y")

	renamed, err := f.chat.RenameGroup(t.Context(), "x", g.ID, "new name")

	req.NoError(err)
	req.Equal("new name", renamed.Name)
	req.Equal([]event.Kind{event.RefetchChats}, kinds(drain(y)))

	_, err = f.chat.RenameGroup(t.Context(), "x", g.ID, "")
	req.ErrorIs(err, errors.ErrValidation)
}

func befriend(t *testing.T, f *fixture, a, b string) chat.Chat {
	t.Helper()
	request, err := f.friends.SendRequest(t.Context(), a, b)
	require.NoError(t, err)
	result, err := f.friends.Respond(t.Context(), b, request.ID, true)
	require.NoError(t, err)
	require.NotNil(t, result.Chat)
	return *result.Chat
}

func TestChatService_DirectChat(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x", "y", "z")
	direct := befriend(t, f, "x", "y")

	// Group operations are refused on a direct chat
	_, err := f.chat.AddMembers(ctx, "x", direct.ID, []string{"z"})
	req.ErrorIs(err, errors.ErrNotGroupChat)
	_, err = f.chat.LeaveGroup(ctx, "x", direct.ID)
	req.ErrorIs(err, errors.ErrNotGroupChat)

	err = f.chat.DeleteDirectChat(ctx, "z", direct.ID)
	req.ErrorIs(err, errors.ErrNotMember)

	y := f.connect("y")
	req.NoError(f.chat.DeleteChat(ctx, "x", direct.ID))
	_, err = f.chats.Get(direct.ID)
	req.ErrorIs(err, errors.ErrChatNotFound)
	req.Equal([]event.Kind{event.RefetchChats}, kinds(drain(y)))
}

func TestChatService_DeleteChat_RoutesGroups(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y", "z")
	g := f.group(t, "x", "y", "z")

	err := f.chat.DeleteChat(t.Context(), "x", g.ID)
	req.ErrorIs(err, errors.ErrMinimumMembers)
}

func TestChatService_ListMyChats(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	f := newFixture(t)
	f.user(t, "x", "y", "z")
	befriend(t, f, "x", "y")
	g := f.group(t, "x", "y", "z")

	views, err := f.chat.ListMyChats(ctx, "x")
	req.NoError(err)
	req.Len(views, 2)

	byID := map[bool]ChatView{}
	for _, v := range views {
		byID[v.GroupChat] = v
	}
	direct := byID[false]
	req.Equal("name-y", direct.Name)
	req.Equal([]Member{{ID: "y", Name: "name-y", Username: "handle_y"}}, direct.Members)

	group := byID[true]
	req.Equal(g.ID, group.ID)
	req.Equal("x", group.GroupAdmin)
	req.Len(group.Members, 2)
	req.Len(group.Avatar, 3)

	groups, err := f.chat.ListMyGroups(ctx, "x")
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(g.ID, groups[0].ID)
}

func TestChatService_GetChatDetails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y", "q")
	g := f.group(t, "x", "y")

	details, err := f.chat.GetChatDetails(t.Context(), "x", g.ID, true)
	req.NoError(err)
	req.Equal(g.ID, details.ID)
	req.Len(details.Populated, 2)

	_, err = f.chat.GetChatDetails(t.Context(), "q", g.ID, false)
	req.ErrorIs(err, errors.ErrNotMember)
}
