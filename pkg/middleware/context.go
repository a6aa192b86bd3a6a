package middleware

import "context"

type contextKey string

const (
	ContextUserID   contextKey = "userID"
	ContextToken    contextKey = "token"
	ContextRole     contextKey = "role"
	ContextUserType contextKey = "userType"
)

func GetUserID(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(ContextUserID).(string)
	return val, ok && val != ""
}
