package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/basedest/course-project/internal/render"
)

// rssItemCount はRSSフィードに含める記事数。
const rssItemCount = 20

// RSSHandler は最新記事のRSSフィードを配信する。
type RSSHandler struct {
	articles  ArticleServiceInterface
	renderer  ContentRenderer
	baseURL   string
	siteTitle string
	now       func() time.Time
}

// NewRSSHandler はRSSHandlerを生成する。baseURLは記事リンクの絶対URLに使う。
func NewRSSHandler(articles ArticleServiceInterface, renderer ContentRenderer, baseURL, siteTitle string) *RSSHandler {
	return &RSSHandler{
		articles:  articles,
		renderer:  renderer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		siteTitle: siteTitle,
		now:       time.Now,
	}
}

// Feed はRSS 2.0を返す。
// GET /rss.xml
func (h *RSSHandler) Feed(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.Recent(r.Context(), rssItemCount)
	if err != nil {
		slog.Error("failed to load articles for rss", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	feed := &feeds.Feed{
		Title:       h.siteTitle,
		Link:        &feeds.Link{Href: h.baseURL + "/"},
		Description: h.siteTitle + "の最新記事",
		Created:     h.now(),
	}
	if len(articles) > 0 {
		feed.Created = articles[0].CreatedAt
	}

	for _, a := range articles {
		link := h.baseURL + a.Path()
		item := &feeds.Item{
			Id:          link,
			Title:       a.Title,
			Link:        &feeds.Link{Href: link},
			Author:      &feeds.Author{Name: a.Author},
			Description: a.Description,
			Created:     a.CreatedAt,
		}
		if a.EditedAt != nil {
			item.Updated = *a.EditedAt
		}
		if body, err := h.renderer.HTML(a.Content); err == nil {
			item.Content = string(body)
			if item.Description == "" {
				item.Description = render.Excerpt(item.Content, 200)
			}
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		slog.Error("failed to encode rss", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(rss))
}
