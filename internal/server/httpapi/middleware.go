package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/scukconnect/clientportal/internal/common"
	"github.com/scukconnect/clientportal/internal/server/auth"
)

type contextKey string

const accountIDKey contextKey = "accountID"

// withAuth requires a valid bearer access token and stores the account id
// in the request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if header == "" {
			errorJSON(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			errorJSON(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		accountID, err := auth.GetAccountIDFromToken(token, []byte(s.cfg.SecretKey))
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next(w, r.WithContext(ctx))
	}
}

func accountIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(accountIDKey).(int64)
	return id
}
