package server

import (
	"net/http"

	"syncx/errors"

	"github.com/gin-gonic/gin"
)

// ok writes a success envelope, {"success": true, ...body}.
func ok(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func message(c *gin.Context, text string) {
	ok(c, http.StatusOK, gin.H{"message": text})
}

// fail maps err to its status and renders the public part only.
func fail(c *gin.Context, err error) {
	kind, reason, text := errors.Public(err)
	body := gin.H{"success": false, "kind": kind, "message": text}
	if reason != "" {
		body["reason"] = reason
	}
	if errors.KindOf(err) == errors.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(errors.HTTPStatus(err), body)
}

// bind decodes a JSON body, any decoding failure is a validation error.
func bind(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		fail(c, errors.ErrValidation.WithMessage("invalid body: %s", err.Error()))
		return false
	}
	return true
}
