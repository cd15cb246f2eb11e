package server

import (
	"net/http"

	"syncx/auth"
	"syncx/errors"
	"syncx/services"

	"github.com/gin-gonic/gin"
)

func (s *Server) register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, errors.ErrValidation.WithMessage("invalid body: %s", err.Error()))
		return
	}
	avatar, err := s.formFile(c, "avatar")
	if err != nil {
		fail(c, err)
		return
	}
	user, token, err := s.deps.Accounts.Register(c.Request.Context(), req, avatar)
	if err != nil {
		fail(c, err)
		return
	}
	s.setCookie(c, auth.CookieName, token.String(), s.opts.TokenDuration)
	ok(c, http.StatusCreated, gin.H{"user": user, "message": "User created"})
}

func (s *Server) login(c *gin.Context) {
	var req auth.LoginRequest
	if !bind(c, &req) {
		return
	}
	user, token, err := s.deps.Accounts.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	s.setCookie(c, auth.CookieName, token.String(), s.opts.TokenDuration)
	ok(c, http.StatusOK, gin.H{"user": user, "message": "Welcome back, " + user.Name})
}

func (s *Server) logout(c *gin.Context) {
	s.clearCookie(c, auth.CookieName)
	message(c, "Logged out successfully")
}

func (s *Server) me(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	user, err := s.deps.Profiles.GetProfile(c.Request.Context(), callerID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"user": user})
}

func (s *Server) updateProfile(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	update, done := s.profileUpdate(c)
	if !done {
		return
	}
	user, err := s.deps.Profiles.UpdateProfile(c.Request.Context(), callerID, update)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"user": user, "message": "Profile updated successfully"})
}

// profileUpdate reads profile fields from JSON or a multipart form, the
// latter possibly carrying an avatar.
func (s *Server) profileUpdate(c *gin.Context) (services.ProfileUpdate, bool) {
	var update services.ProfileUpdate
	if err := c.ShouldBind(&update); err != nil {
		fail(c, errors.ErrValidation.WithMessage("invalid body: %s", err.Error()))
		return update, false
	}
	avatar, err := s.formFile(c, "avatar")
	if err != nil {
		fail(c, err)
		return update, false
	}
	update.Avatar = avatar
	return update, true
}

func (s *Server) searchUsers(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	users, err := s.deps.Profiles.SearchUsers(c.Request.Context(), callerID, c.Query("name"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"users": users})
}

type userIDBody struct {
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) sendRequest(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var body userIDBody
	if !bind(c, &body) {
		return
	}
	if _, err := s.deps.Friends.SendRequest(c.Request.Context(), callerID, body.UserID); err != nil {
		fail(c, err)
		return
	}
	message(c, "Friend Request Sent")
}

type acceptBody struct {
	RequestID string `json:"requestId" binding:"required"`
	Accept    *bool  `json:"accept" binding:"required"`
}

func (s *Server) acceptRequest(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var body acceptBody
	if !bind(c, &body) {
		return
	}
	result, err := s.deps.Friends.Respond(c.Request.Context(), callerID, body.RequestID, *body.Accept)
	if err != nil {
		fail(c, err)
		return
	}
	if !result.Accepted {
		message(c, "Friend Request Rejected")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"message":  "Friend Request Accepted",
		"senderId": result.SenderID,
		"chatId":   result.Chat.ID,
	})
}

func (s *Server) notifications(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	requests, err := s.deps.Friends.ListNotifications(c.Request.Context(), callerID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"allRequests": requests})
}

func (s *Server) friends(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	friends, err := s.deps.Friends.ListFriends(c.Request.Context(), callerID, c.Query("chatId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"friends": friends})
}

type friendIDBody struct {
	FriendID string `json:"friendId" binding:"required"`
}

func (s *Server) removeFriend(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var body friendIDBody
	if !bind(c, &body) {
		return
	}
	if err := s.deps.Friends.RemoveFriend(c.Request.Context(), callerID, body.FriendID); err != nil {
		fail(c, err)
		return
	}
	message(c, "Friend removed successfully")
}
