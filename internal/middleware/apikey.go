package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newsletterman/internal/model"
)

// APIKeyHeader は外部スケジューラーが共有シークレットを渡すヘッダー名。
const APIKeyHeader = "X-API-Key"

// NewAPIKeyMiddleware はX-API-Keyヘッダーが設定値と一致するリクエストのみ通す。
// 設定値が空の場合は全リクエストを拒否する。
func NewAPIKeyMiddleware(apiKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				slog.Warn("API key validation failed",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
