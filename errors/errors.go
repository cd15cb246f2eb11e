// Package errors defines the error taxonomy surfaced at every boundary.
// Each error carries a stable Kind and an optional Reason; callers match
// them with the standard errors.Is against the sentinels below.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthorized       Kind = "Unauthorized"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindValidation         Kind = "ValidationError"
	KindPreconditionFailed Kind = "PreconditionFailed"
	KindInternal           Kind = "Internal"
)

// Error is a classified error. Two errors match when their kinds are equal
// and the target either has no reason or the same reason.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// WithMessage returns a copy carrying a caller-specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Reason: e.Reason, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUnauthorized       = New(KindUnauthorized, "", "please login to access this resource")
	ErrForbidden          = New(KindForbidden, "", "not allowed")
	ErrNotFound           = New(KindNotFound, "", "resource not found")
	ErrValidation         = New(KindValidation, "", "invalid input")
	ErrPreconditionFailed = New(KindPreconditionFailed, "", "precondition failed")

	ErrInvalidToken       = New(KindUnauthorized, "InvalidToken", "invalid or expired token")
	ErrInvalidCredentials = New(KindUnauthorized, "InvalidCredentials", "invalid username or password")
	ErrInvalidAdminKey    = New(KindUnauthorized, "InvalidAdminKey", "invalid admin key")

	ErrNotAdmin  = New(KindForbidden, "NotAdmin", "only the group admin can do this")
	ErrNotMember = New(KindForbidden, "NotMember", "you are not a member of this chat")
	ErrNotSender = New(KindForbidden, "NotSender", "you can only delete your own messages")
	ErrNotTarget = New(KindForbidden, "NotReceiver", "you are not the receiver of this request")

	ErrChatNotFound    = New(KindNotFound, "Chat", "chat not found")
	ErrUserNotFound    = New(KindNotFound, "User", "user not found")
	ErrMessageNotFound = New(KindNotFound, "Message", "message not found")
	ErrRequestNotFound = New(KindNotFound, "FriendRequest", "request not found")

	ErrInvalidPassword = New(KindValidation, "InvalidPassword", "password does not meet complexity rules")
	ErrTooManyFiles    = New(KindValidation, "TooManyFiles", "you can upload up to 5 files only")
	ErrNoFiles         = New(KindValidation, "NoFiles", "please upload at least one attachment")
	ErrEmptyMessage    = New(KindValidation, "EmptyMessage", "message content is required")
	ErrNotAnImage      = New(KindValidation, "NotAnImage", "file is not an image")

	ErrMinimumMembers      = New(KindPreconditionFailed, "MinimumMembersViolation", "group must keep at least 3 members")
	ErrDuplicateRequest    = New(KindPreconditionFailed, "DuplicateRequest", "request already sent")
	ErrLimitExceeded       = New(KindPreconditionFailed, "LimitExceeded", "group members limit reached")
	ErrNoEligibleSuccessor = New(KindPreconditionFailed, "NoEligibleSuccessor", "no other member available")
	ErrSelfReference       = New(KindPreconditionFailed, "SelfReference", "operation cannot target yourself")
	ErrNotGroupChat        = New(KindPreconditionFailed, "NotGroupChat", "this is not a group chat")
	ErrGroupChat           = New(KindPreconditionFailed, "GroupChat", "this is a group chat")
	ErrTargetIsAdmin       = New(KindPreconditionFailed, "TargetIsAdmin", "group admin cannot be removed")
	ErrAlreadyAdmin        = New(KindPreconditionFailed, "AlreadyAdmin", "user is already the group admin")
	ErrTargetNotMember     = New(KindPreconditionFailed, "TargetNotMember", "user is not a member of this group")
	ErrChatDeleted         = New(KindPreconditionFailed, "ChatDeleted", "chat has been deleted")
	ErrUserAlreadyExists   = New(KindPreconditionFailed, "UsernameTaken", "username already taken")

	ErrTokenGeneration = New(KindInternal, "TokenGeneration", "token generation failed")
	ErrWorkerPanic     = New(KindInternal, "WorkerPanic", "worker panic")
	ErrSinkFull        = New(KindInternal, "SinkFull", "connection buffer full")
	ErrSinkClosed      = New(KindInternal, "SinkClosed", "connection closed")
)

// KindOf reports the kind of err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code returned by the REST surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindPreconditionFailed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Public renders err for a client: classified errors keep their message,
// anything else is hidden behind a generic one.
func Public(err error) (Kind, string, string) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, e.Reason, e.Message
	}
	return KindInternal, "", "internal server error"
}

// Is, As and Join re-export the standard helpers so callers importing this
// package do not also need the standard errors package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
