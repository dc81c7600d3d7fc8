package httpapi

import (
	"context"
	"net/http"
	"strings"

	"campusconnect/internal/domain"
)

// UserHeader carries the authenticated user id. Authentication happens at the
// gateway in front of this service.
const UserHeader = "X-User-Id"

type authCtxKey int

const authUserKey authCtxKey = iota

func (a *api) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), authUserKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(authUserKey).(string)
	return id, ok && id != ""
}
