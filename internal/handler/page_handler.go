package handler

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/basedest/course-project/internal/article"
	"github.com/basedest/course-project/internal/middleware"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// ContentRenderer はエディタ出力をHTMLに変換する。
type ContentRenderer interface {
	HTML(content json.RawMessage) (template.HTML, error)
}

var templateFuncs = template.FuncMap{
	"date":    func(t time.Time) string { return t.Format("2006-01-02") },
	"isoDate": func(t time.Time) string { return t.Format(time.RFC3339) },
	"prev":    func(n int) int { return n - 1 },
	"next":    func(n int) int { return n + 1 },
}

// parsePageTemplates はレイアウトとページごとのテンプレートを組み合わせて返す。
func parsePageTemplates() map[string]*template.Template {
	layout := template.Must(template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html"))

	pages := make(map[string]*template.Template)
	for _, name := range []string{"list", "article", "notfound"} {
		t := template.Must(layout.Clone())
		pages[name] = template.Must(t.ParseFS(templateFS, "templates/"+name+".html"))
	}
	return pages
}

// pageData はレイアウトに渡す共通データ。
type pageData struct {
	SiteTitle   string
	Title       string
	Description string
	Categories  []string
}

type listPageData struct {
	pageData
	Heading  string
	Category string
	Query    string
	Page     *article.Page
}

type articlePageData struct {
	pageData
	Article  *model.Article
	Body     template.HTML
	Editable bool
}

// PageHandler はサーバーサイドで描画する公開ページのHTTPハンドラー。
type PageHandler struct {
	articles  ArticleServiceInterface
	renderer  ContentRenderer
	siteTitle string
	templates map[string]*template.Template
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(articles ArticleServiceInterface, renderer ContentRenderer, siteTitle string) *PageHandler {
	return &PageHandler{
		articles:  articles,
		renderer:  renderer,
		siteTitle: siteTitle,
		templates: parsePageTemplates(),
	}
}

// Home は最新記事の一覧を表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	page, err := h.articles.List(r.Context(), model.ArticleQuery{}, pageParam(r))
	if err != nil {
		h.serverError(w, err)
		return
	}

	h.execute(w, http.StatusOK, "list", listPageData{
		pageData: h.base("", ""),
		Heading:  "最新の記事",
		Page:     page,
	})
}

// Category はカテゴリ別の記事一覧を表示する。titleで部分一致検索できる。
// GET /{category}?title=xxx&page=n
func (h *PageHandler) Category(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if !model.IsValidCategory(category) {
		h.NotFound(w, r)
		return
	}

	title := r.URL.Query().Get("title")
	page, err := h.articles.List(r.Context(), model.ArticleQuery{Category: category, Title: title}, pageParam(r))
	if err != nil {
		h.serverError(w, err)
		return
	}

	h.execute(w, http.StatusOK, "list", listPageData{
		pageData: h.base(category, ""),
		Heading:  category,
		Category: category,
		Query:    title,
		Page:     page,
	})
}

// Article は記事ページを表示する。カテゴリが一致しない場合は404とする。
// GET /{category}/{slug}
func (h *PageHandler) Article(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	a, err := h.articles.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeArticleNotFound {
			h.NotFound(w, r)
			return
		}
		h.serverError(w, err)
		return
	}
	if a.Category != category {
		h.NotFound(w, r)
		return
	}

	body, err := h.renderer.HTML(a.Content)
	if err != nil {
		// 本文が壊れていてもメタ情報は表示する
		slog.Warn("failed to render article content",
			slog.String("slug", a.Slug),
			slog.String("error", err.Error()),
		)
	}

	description := a.Description
	if description == "" {
		description = render.Excerpt(string(body), 160)
	}

	h.execute(w, http.StatusOK, "article", articlePageData{
		pageData: h.base(a.Title, description),
		Article:  a,
		Body:     body,
		Editable: article.CanEdit(middleware.UserFromContext(r.Context()), a),
	})
}

// NotFound は404ページを表示する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.execute(w, http.StatusNotFound, "notfound", h.base("ページが見つかりません", ""))
}

func (h *PageHandler) base(title, description string) pageData {
	return pageData{
		SiteTitle:   h.siteTitle,
		Title:       title,
		Description: description,
		Categories:  model.Categories,
	}
}

// execute はテンプレートをバッファに描画してから書き込む。
// 描画途中で失敗した場合に不完全なHTMLを返さないようにする。
func (h *PageHandler) execute(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *PageHandler) serverError(w http.ResponseWriter, err error) {
	slog.Error("failed to render page", slog.String("error", err.Error()))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
