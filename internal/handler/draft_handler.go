package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/metrics"
	"github.com/basedest/course-project/internal/middleware"
	"github.com/basedest/course-project/internal/model"
)

// DraftHandler はユーザーごとのサーバー側下書きAPIのHTTPハンドラー。
// 下書きの所有者はログインユーザーのIDとする。
type DraftHandler struct {
	store     draft.Store
	storeName string
	metrics   metrics.MetricsCollector
}

// NewDraftHandler はDraftHandlerを生成する。storeNameはメトリクスのラベルに使う。
func NewDraftHandler(store draft.Store, storeName string, collector metrics.MetricsCollector) *DraftHandler {
	return &DraftHandler{
		store:     store,
		storeName: storeName,
		metrics:   collector,
	}
}

// Get は下書きを返す。保存されていない場合は204を返す。
// GET /api/drafts/{name}
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	data, err := h.store.Get(r.Context(), key)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// Put は下書きを上書き保存する。ボディはエディタ出力のJSONそのもの。
// PUT /api/drafts/{name}
func (h *DraftHandler) Put(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, draft.MaxSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewDraftTooLargeError(draft.MaxSize))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, errInvalidRequest())
		return
	}
	if len(body) == 0 || !json.Valid(body) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDraftError("JSONとして解析できません"))
		return
	}

	if err := h.store.Set(r.Context(), key, json.RawMessage(body)); err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordDraftWrite(h.storeName)
	}

	slog.Debug("draft saved",
		slog.String("draft", key.String()),
		slog.Int("size", len(body)),
	)
	w.WriteHeader(http.StatusNoContent)
}

// Delete は下書きを削除する。存在しない場合も204を返す。
// DELETE /api/drafts/{name}
func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	if err := h.store.Clear(r.Context(), key); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// key はログインユーザーとパスの名前から下書きのKeyを組み立てる。
// 失敗時はレスポンスを書き込みfalseを返す。
func (h *DraftHandler) key(w http.ResponseWriter, r *http.Request) (draft.Key, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return draft.Key{}, false
	}

	name := chi.URLParam(r, "name")
	if !draft.ValidName(name) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDraftError("下書き名は英数字、ハイフン、アンダースコアの64文字以内で指定してください"))
		return draft.Key{}, false
	}
	return draft.Key{Owner: userID, Name: name}, true
}
