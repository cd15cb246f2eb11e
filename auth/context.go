package auth

import "context"

type contextKey string

const userIDKey contextKey = "user_id"

// ContextWithUserID injects the caller identity for downstream layers.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
