package server

import (
	"net/http"

	"syncx/auth"

	"github.com/gin-gonic/gin"
)

type secretKeyBody struct {
	SecretKey string `json:"secretKey" binding:"required"`
}

func (s *Server) adminVerify(c *gin.Context) {
	var body secretKeyBody
	if !bind(c, &body) {
		return
	}
	token, err := s.deps.Auth.VerifyAdminKey(body.SecretKey)
	if err != nil {
		fail(c, err)
		return
	}
	s.setCookie(c, auth.AdminCookieName, token, auth.AdminTokenDuration)
	message(c, "Authenticated Successfully, Welcome BOSS")
}

func (s *Server) adminLogout(c *gin.Context) {
	s.clearCookie(c, auth.AdminCookieName)
	message(c, "Logged Out Successfully")
}

func (s *Server) adminUsers(c *gin.Context) {
	users, err := s.deps.Admin.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"users": users})
}

func (s *Server) adminChats(c *gin.Context) {
	chats, err := s.deps.Admin.ListChats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"chats": chats})
}

func (s *Server) adminMessages(c *gin.Context) {
	messages, err := s.deps.Admin.ListMessages(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) adminStats(c *gin.Context) {
	stats, err := s.deps.Admin.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) adminRuntime(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"runtime": s.deps.Admin.RuntimeStats(c.Request.Context())})
}

func (s *Server) adminUpdateUser(c *gin.Context) {
	update, done := s.profileUpdate(c)
	if !done {
		return
	}
	user, err := s.deps.Admin.UpdateUser(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

func (s *Server) adminDeleteUser(c *gin.Context) {
	if err := s.deps.Admin.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	message(c, "User deleted successfully")
}
