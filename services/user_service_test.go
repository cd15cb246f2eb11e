package services

import (
	"testing"

	"syncx/contract"
	"syncx/errors"

	"github.com/stretchr/testify/require"
)

func TestUserService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.user(t, "x", "y")

	t.Run("fields and avatar are replaced", func(t *testing.T) {
		req := require.New(t)
		bio, handle := "new bio", "fresh.handle"

		first, err := f.profile.UpdateProfile(t.Context(), "x", ProfileUpdate{
			Bio:      &bio,
			Username: &handle,
			Avatar:   &contract.File{Name: "a.png", Data: pngOf("avatar one")},
		})
		req.NoError(err)
		req.Equal("new bio", first.Bio)
		req.NotEmpty(first.AvatarURL())

		second, err := f.profile.UpdateProfile(t.Context(), "x", ProfileUpdate{
			Avatar: &contract.File{Name: "b.png", Data: pngOf("avatar two")},
		})
		req.NoError(err)
		req.NotEqual(first.AvatarURL(), second.AvatarURL())
		req.Equal(1, blobCount(t, f.blobDir))

		byHandle, err := f.users.GetByUsername("Fresh.Handle")
		req.NoError(err)
		req.Equal("x", byHandle.ID)
	})

	t.Run("handle stays unique", func(t *testing.T) {
		req := require.New(t)
		taken := "handle_y"
		_, err := f.profile.UpdateProfile(t.Context(), "x", ProfileUpdate{Username: &taken})
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})

	t.Run("invalid handle", func(t *testing.T) {
		req := require.New(t)
		bad := "no spaces allowed"
		_, err := f.profile.UpdateProfile(t.Context(), "x", ProfileUpdate{Username: &bad})
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestUserService_SearchUsers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "x", "y", "z", "w")
	befriend(t, f, "x", "y")

	found, err := f.profile.SearchUsers(t.Context(), "x", "NAME")
	req.NoError(err)
	ids := []string{}
	for _, m := range found {
		ids = append(ids, m.ID)
	}
	req.ElementsMatch([]string{"z", "w"}, ids)

	found, err = f.profile.SearchUsers(t.Context(), "x", "-w")
	req.NoError(err)
	req.Len(found, 1)
	req.Equal("w", found[0].ID)
}
