package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/basedest/course-project/internal/article"
	"github.com/basedest/course-project/internal/middleware"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/slug"
)

// maxArticleBodySize は記事作成・更新リクエストの最大サイズ。
// 本文はエディタ出力をそのまま含むため下書きの上限より少し大きくとる。
const maxArticleBodySize = 2 << 20

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	Create(ctx context.Context, user *model.User, input *model.Article) (*model.Article, error)
	Update(ctx context.Context, user *model.User, slug string, input *model.Article) (*model.Article, error)
	Delete(ctx context.Context, user *model.User, slug string) error
	GetBySlug(ctx context.Context, slug string) (*model.Article, error)
	List(ctx context.Context, q model.ArticleQuery, page int) (*article.Page, error)
	Recent(ctx context.Context, n int) ([]*model.Article, error)
}

// ArticleHandler は記事APIのHTTPハンドラー。
type ArticleHandler struct {
	service ArticleServiceInterface
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface) *ArticleHandler {
	return &ArticleHandler{service: service}
}

// articleRequest は記事作成・更新リクエストのボディ。
type articleRequest struct {
	*model.Article
}

// Bind はrender.Binderを実装する。
func (a *articleRequest) Bind(r *http.Request) error {
	if a.Article == nil {
		return errors.New("missing article fields")
	}
	// IDと著者はサーバー側で決めるため、送られてきても使わない
	a.ID = ""
	a.AuthorID = ""
	return nil
}

// articleResponse は記事のAPIレスポンス。
type articleResponse struct {
	*model.Article
	URL string `json:"url"`
}

func newArticleResponse(a *model.Article) *articleResponse {
	return &articleResponse{Article: a}
}

// Render はrender.Rendererを実装する。
func (a *articleResponse) Render(w http.ResponseWriter, r *http.Request) error {
	a.URL = a.Path()
	return nil
}

// articleListResponse は記事一覧のAPIレスポンス。
type articleListResponse struct {
	Articles   []*articleResponse `json:"articles"`
	Page       int                `json:"page"`
	TotalPages int                `json:"totalPages"`
	Total      int                `json:"total"`
}

func newArticleListResponse(p *article.Page) *articleListResponse {
	resp := &articleListResponse{
		Articles:   make([]*articleResponse, 0, len(p.Articles)),
		Page:       p.Page,
		TotalPages: p.TotalPages,
		Total:      p.Total,
	}
	for _, a := range p.Articles {
		resp.Articles = append(resp.Articles, newArticleResponse(a))
	}
	return resp
}

// Render はrender.Rendererを実装する。
func (l *articleListResponse) Render(w http.ResponseWriter, r *http.Request) error {
	for _, a := range l.Articles {
		if err := a.Render(w, r); err != nil {
			return err
		}
	}
	return nil
}

// List は記事一覧を返す。
// GET /api/articles?category=xxx&title=yyy&page=n
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := model.ArticleQuery{
		Category: r.URL.Query().Get("category"),
		Title:    r.URL.Query().Get("title"),
	}
	if q.Category != "" && !model.IsValidCategory(q.Category) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(q.Category))
		return
	}

	page, err := h.service.List(r.Context(), q, pageParam(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.render(w, r, newArticleListResponse(page))
}

// Get はスラッグで記事を1件返す。
// GET /api/articles/{slug}
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	articleSlug := chi.URLParam(r, "slug")
	if !slug.Valid(articleSlug) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewArticleNotFoundError(articleSlug))
		return
	}

	a, err := h.service.GetBySlug(r.Context(), articleSlug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.render(w, r, newArticleResponse(a))
}

// Create は記事を作成する。
// POST /api/articles/
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteUnauthorized(w)
		return
	}

	data, ok := bindArticle(w, r)
	if !ok {
		return
	}

	a, err := h.service.Create(r.Context(), user, data.Article)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	h.render(w, r, newArticleResponse(a))
}

// Update は記事を更新する。タイトルとスラッグは変更されない。
// PUT /api/articles/{slug}
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteUnauthorized(w)
		return
	}

	articleSlug := chi.URLParam(r, "slug")
	if !slug.Valid(articleSlug) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewArticleNotFoundError(articleSlug))
		return
	}

	data, ok := bindArticle(w, r)
	if !ok {
		return
	}

	a, err := h.service.Update(r.Context(), user, articleSlug, data.Article)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.render(w, r, newArticleResponse(a))
}

// Delete は記事を削除する。
// DELETE /api/articles/{slug}
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteUnauthorized(w)
		return
	}

	if err := h.service.Delete(r.Context(), user, chi.URLParam(r, "slug")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ArticleHandler) render(w http.ResponseWriter, r *http.Request, v render.Renderer) {
	if err := render.Render(w, r, v); err != nil {
		handleServiceError(w, err)
	}
}

// bindArticle はリクエストボディを記事として読み取る。失敗時はレスポンスを書き込みfalseを返す。
func bindArticle(w http.ResponseWriter, r *http.Request) (*articleRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxArticleBodySize)

	data := &articleRequest{}
	if err := render.Bind(r, data); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidArticleError("リクエストが大きすぎます"))
			return nil, false
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, errInvalidRequest())
		return nil, false
	}
	return data, true
}

// pageParam はクエリのpageを返す。未指定または不正な値は1とする。
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
