package server

import (
	"net/http"
	"strconv"

	"syncx/auth"
	"syncx/domain/chat"
	"syncx/errors"
	"syncx/services"

	"github.com/gin-gonic/gin"
)

type newGroupBody struct {
	Name    string   `json:"name" binding:"required"`
	Members []string `json:"members" binding:"required,min=2,max=100"`
}

func (s *Server) newGroup(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var body newGroupBody
	if !bind(c, &body) {
		return
	}
	group, err := s.deps.Chats.CreateGroup(c.Request.Context(), callerID, body.Name, body.Members)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"message": "Group Created", "group": group})
}

func (s *Server) myChats(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	chats, err := s.deps.Chats.ListMyChats(c.Request.Context(), callerID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"chats": chats})
}

func (s *Server) myGroups(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	groups, err := s.deps.Chats.ListMyGroups(c.Request.Context(), callerID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"groups": groups})
}

type addMembersBody struct {
	ChatID  string   `json:"chatId" binding:"required"`
	Members []string `json:"members" binding:"required,min=1,max=97"`
}

func (s *Server) addMembers(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var body addMembersBody
	if !bind(c, &body) {
		return
	}
	if _, err := s.deps.Chats.AddMembers(c.Request.Context(), callerID, body.ChatID, body.Members); err != nil {
		fail(c, err)
		return
	}
	message(c, "Members added successfully")
}

type chatUserBody struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// removeMember serves both the body form and the path form
// /group/:chatId/members/:memberId.
func (s *Server) removeMember(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	body := chatUserBody{ChatID: c.Param("chatId"), UserID: c.Param("memberId")}
	if body.ChatID == "" && !bind(c, &body) {
		return
	}
	if body.ChatID == "" || body.UserID == "" {
		fail(c, errors.ErrValidation.WithMessage("please enter chat id and user id"))
		return
	}
	if _, err := s.deps.Chats.RemoveMember(c.Request.Context(), callerID, body.ChatID, body.UserID); err != nil {
		fail(c, err)
		return
	}
	message(c, "Member removed successfully")
}

func (s *Server) assignAdmin(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var body chatUserBody
	if !bind(c, &body) {
		return
	}
	if body.ChatID == "" || body.UserID == "" {
		fail(c, errors.ErrValidation.WithMessage("please enter chat id and user id to promote"))
		return
	}
	group, err := s.deps.Chats.AssignAdmin(c.Request.Context(), callerID, body.ChatID, body.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Admin assigned successfully", "chat": group})
}

func (s *Server) removeAdmin(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	group, err := s.deps.Chats.RemoveAdminRole(c.Request.Context(), callerID, c.Param("chatId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Admin role removed and transferred successfully", "chat": group})
}

type editGroupForm struct {
	Name        *string `form:"name" json:"name"`
	Description *string `form:"description" json:"description"`
}

func (s *Server) editGroup(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var form editGroupForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, errors.ErrValidation.WithMessage("invalid body: %s", err.Error()))
		return
	}
	image, err := s.formFile(c, "avatar")
	if err != nil {
		fail(c, err)
		return
	}
	group, err := s.deps.Chats.EditGroup(c.Request.Context(), callerID, c.Param("chatId"), services.EditGroupCommand{
		Name:        form.Name,
		Description: form.Description,
		Image:       image,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Group updated successfully", "chat": group})
}

func (s *Server) leaveGroup(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	outcome, err := s.deps.Chats.LeaveGroup(c.Request.Context(), callerID, c.Param("chatId"))
	if err != nil {
		fail(c, err)
		return
	}
	if outcome.Deleted {
		message(c, "Group deleted as you were the only member")
		return
	}
	message(c, "Left group successfully")
}

func (s *Server) deleteGroup(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	if err := s.deps.Chats.DeleteGroup(c.Request.Context(), callerID, c.Param("chatId")); err != nil {
		fail(c, err)
		return
	}
	message(c, "Group deleted successfully")
}

func (s *Server) sendAttachments(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	chatID := c.PostForm("chatId")
	if chatID == "" {
		fail(c, errors.ErrValidation.WithMessage("please enter chat id"))
		return
	}
	files, err := s.formFiles(c, "attachments")
	if err != nil {
		fail(c, err)
		return
	}
	sent, err := s.deps.Messages.SendAttachments(c.Request.Context(), services.SendAttachmentsCommand{
		ChatID:   chatID,
		SenderID: callerID,
		Caption:  c.PostForm("caption"),
		Files:    files,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": sent})
}

func (s *Server) messages(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, errors.ErrValidation.WithMessage("page must be a positive integer"))
			return
		}
		page = n
	}
	result, err := s.deps.Messages.GetMessages(c.Request.Context(), chat.GetMessagesCommand{
		ChatID: c.Param("id"),
		UserID: callerID,
		Page:   page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": result.Messages, "totalPages": result.TotalPages})
}

func (s *Server) deleteMessage(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	if err := s.deps.Messages.DeleteMessage(c.Request.Context(), callerID, c.Param("chatId"), c.Param("messageId")); err != nil {
		fail(c, err)
		return
	}
	message(c, "Message deleted successfully")
}

func (s *Server) chatDetails(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	details, err := s.deps.Chats.GetChatDetails(c.Request.Context(), callerID, c.Param("id"), c.Query("populate") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"chat": details})
}

type renameBody struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) renameGroup(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	var body renameBody
	if !bind(c, &body) {
		return
	}
	if _, err := s.deps.Chats.RenameGroup(c.Request.Context(), callerID, c.Param("id"), body.Name); err != nil {
		fail(c, err)
		return
	}
	message(c, "Group renamed successfully")
}

func (s *Server) deleteChat(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	if err := s.deps.Chats.DeleteChat(c.Request.Context(), callerID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	message(c, "Chat deleted successfully")
}
