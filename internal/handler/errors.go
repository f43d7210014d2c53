package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/basedest/course-project/internal/middleware"
	"github.com/basedest/course-project/internal/model"
)

// errInvalidRequest はリクエストボディを解析できない場合のエラー。
func errInvalidRequest() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeArticleNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateSlug, model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case model.ErrCodeInvalidArticle, model.ErrCodeInvalidCategory,
		model.ErrCodeInvalidRegistration, model.ErrCodeInvalidDraft,
		model.ErrCodeInvalidURL, "INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeForbidden, model.ErrCodeSSRFBlocked, model.ErrCodeCSRFFailed:
		return http.StatusForbidden
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeOAuthDisabled:
		return http.StatusNotFound
	case model.ErrCodeDraftTooLarge, model.ErrCodeUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
