package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newsletterman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteError はサービス層のエラーをHTTPステータスに変換して書き込む。
// *model.APIError 以外は内部エラーとしてログに残し、詳細は返さない。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForError(apiErr), apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}

// StatusForError はAPIErrorのコードからHTTPステータスを決める。
func StatusForError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidURL, model.ErrCodeInvalidRequest,
		model.ErrCodeNoArticles, model.ErrCodePasswordMismatch:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeSSRFBlocked, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeFeedNotFound, model.ErrCodeDraftNotFound, model.ErrCodeNewsletterNotFound,
		model.ErrCodeSubscriberNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDraftNotSchedulable, model.ErrCodeDraftInUse, model.ErrCodeNewsletterNotSendable,
		model.ErrCodeNewsletterNotCancel, model.ErrCodeNoActiveSubscribers, model.ErrCodeNotionNotConnected,
		model.ErrCodeDuplicateSubscriber, model.ErrCodeDuplicateUser:
		return http.StatusConflict
	case model.ErrCodeFeedNotDetected, model.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeFetchFailed, model.ErrCodeIntegration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
