package auth

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/response"
)

type contextKey struct{}

// WithUserID - 컨텍스트에 인증된 userID 저장
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFrom - 컨텍스트에서 userID 조회
func UserIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}

// BearerToken - Authorization 헤더에서 Bearer 토큰 추출
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware - Bearer 토큰 인증 미들웨어
func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			response.Fail(w, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			return
		}

		userID, err := m.Parse(token)
		if err != nil {
			log.Debugf("🔒 Rejected token: %v", err)
			response.Fail(w, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
