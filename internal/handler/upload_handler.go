package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"

	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/upload"
)

// multipartOverhead はmultipartの境界やヘッダー分として画像サイズ上限に上乗せするバイト数。
const multipartOverhead = 64 << 10

// UploadServiceInterface は画像アップロードハンドラーが必要とするサービスインターフェース。
type UploadServiceInterface interface {
	Upload(ctx context.Context, r io.Reader) (*upload.Result, error)
	UploadFromURL(ctx context.Context, rawURL string) (*upload.Result, error)
	MaxSize() int64
}

// UploadHandler は画像アップロードのHTTPハンドラー。
type UploadHandler struct {
	service UploadServiceInterface
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service UploadServiceInterface) *UploadHandler {
	return &UploadHandler{service: service}
}

type remoteUploadRequest struct {
	URL string `json:"url"`
}

// Upload はmultipartのfileフィールドで送られた画像を保存する。
// POST /api/uploads
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxSize()+multipartOverhead)

	file, _, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewUploadTooLargeError(h.service.MaxSize()))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "fileフィールドに画像が含まれていません。",
			Category: "upload",
			Action:   "multipart/form-dataのfileフィールドで画像を送信してください。",
		})
		return
	}
	defer file.Close()

	result, err := h.service.Upload(r.Context(), file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// UploadRemote はURLで指定された画像を取得して保存する。
// POST /api/uploads/remote
func (h *UploadHandler) UploadRemote(w http.ResponseWriter, r *http.Request) {
	var req remoteUploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<10)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, errInvalidRequest())
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	result, err := h.service.UploadFromURL(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}
