// Package article は記事の作成・更新・閲覧のドメインロジックを提供する。
package article

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/basedest/course-project/internal/metrics"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/render"
	"github.com/basedest/course-project/internal/repository"
	"github.com/basedest/course-project/internal/slug"
)

// ContentSanitizer はエディタ出力内のインラインHTMLをサニタイズする。
type ContentSanitizer interface {
	Sanitize(content json.RawMessage) (json.RawMessage, error)
}

// Page は記事一覧の1ページ分の結果。
type Page struct {
	Articles   []*model.Article
	Page       int
	TotalPages int
	Total      int
}

// HasPrev は前のページが存在するかを返す。
func (p *Page) HasPrev() bool { return p.Page > 1 }

// HasNext は次のページが存在するかを返す。
func (p *Page) HasNext() bool { return p.Page < p.TotalPages }

// Service は記事管理のサービス層。
type Service struct {
	repo      repository.ArticleRepository
	sanitizer ContentSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(repo repository.ArticleRepository, sanitizer ContentSanitizer, collector metrics.MetricsCollector) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// CanEdit はユーザーが記事を編集できるかを返す。
// 管理者はすべての記事を、一般ユーザーは自分の記事のみ編集できる。
// author_idを持たない記事は著者名で照合する。
func CanEdit(user *model.User, a *model.Article) bool {
	if user == nil || a == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	if a.AuthorID != "" {
		return a.AuthorID == user.ID
	}
	return a.Author != "" && a.Author == user.DisplayName()
}

// Create は記事を作成する。
// スラッグはタイトルから導出し、著者はログインユーザーとする。
func (s *Service) Create(ctx context.Context, user *model.User, input *model.Article) (*model.Article, error) {
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if input == nil {
		return nil, s.reject(metrics.RejectInvalid, model.NewInvalidArticleError("empty request"))
	}

	a := &model.Article{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Author:      user.DisplayName(),
		AuthorID:    user.ID,
		CreatedAt:   input.CreatedAt,
		Img:         strings.TrimSpace(input.Img),
		Tags:        model.NormalizeTags(input.Tags),
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	if err := s.validate(a); err != nil {
		return nil, err
	}

	a.Slug = slug.Make(a.Title)
	if a.Slug == "" {
		return nil, s.reject(metrics.RejectInvalid, model.NewInvalidArticleError("title must contain a letter or digit"))
	}

	content, err := s.sanitizeContent(input.Content)
	if err != nil {
		return nil, err
	}
	a.Content = content

	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, s.reject(metrics.RejectDuplicate, model.NewDuplicateSlugError(a.Slug))
		}
		return nil, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordArticleCreated(a.Category)
	}
	slog.Info("記事を作成しました",
		slog.String("slug", a.Slug),
		slog.String("category", a.Category),
		slog.String("user_id", user.ID),
	)
	return a, nil
}

// Update は記事を更新する。
// タイトル、スラッグ、著者、作成日時は変更できない。
func (s *Service) Update(ctx context.Context, user *model.User, articleSlug string, input *model.Article) (*model.Article, error) {
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if input == nil {
		return nil, s.reject(metrics.RejectInvalid, model.NewInvalidArticleError("empty request"))
	}

	existing, err := s.repo.FindBySlug(ctx, articleSlug)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, s.reject(metrics.RejectNotFound, model.NewArticleNotFoundError(articleSlug))
	}
	if !CanEdit(user, existing) {
		return nil, s.reject(metrics.RejectForbidden, model.NewForbiddenError())
	}

	updated := *existing
	updated.Description = strings.TrimSpace(input.Description)
	updated.Category = strings.TrimSpace(input.Category)
	updated.Img = strings.TrimSpace(input.Img)
	updated.Tags = model.NormalizeTags(input.Tags)

	if err := s.validate(&updated); err != nil {
		return nil, err
	}

	content, err := s.sanitizeContent(input.Content)
	if err != nil {
		return nil, err
	}
	updated.Content = content

	now := s.now()
	updated.EditedAt = &now

	found, err := s.repo.Update(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("記事の更新に失敗しました: %w", err)
	}
	if !found {
		return nil, s.reject(metrics.RejectNotFound, model.NewArticleNotFoundError(articleSlug))
	}

	if s.metrics != nil {
		s.metrics.RecordArticleUpdated(updated.Category)
	}
	slog.Info("記事を更新しました",
		slog.String("slug", updated.Slug),
		slog.String("user_id", user.ID),
	)
	return &updated, nil
}

// Delete は記事を削除する。権限はUpdateと同じ。
func (s *Service) Delete(ctx context.Context, user *model.User, articleSlug string) error {
	existing, err := s.repo.FindBySlug(ctx, articleSlug)
	if err != nil {
		return fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewArticleNotFoundError(articleSlug)
	}
	if !CanEdit(user, existing) {
		return model.NewForbiddenError()
	}

	found, err := s.repo.DeleteBySlug(ctx, articleSlug)
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewArticleNotFoundError(articleSlug)
	}

	slog.Info("記事を削除しました",
		slog.String("slug", articleSlug),
		slog.String("user_id", user.ID),
	)
	return nil
}

// GetBySlug はスラッグで記事を取得する。見つからない場合はARTICLE_NOT_FOUNDを返す。
func (s *Service) GetBySlug(ctx context.Context, articleSlug string) (*model.Article, error) {
	a, err := s.repo.FindBySlug(ctx, articleSlug)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(articleSlug)
	}
	return a, nil
}

// List は条件に一致する記事の指定ページを新しい順に返す。
// pageが1未満の場合は1ページ目として扱う。
func (s *Service) List(ctx context.Context, q model.ArticleQuery, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	q.Title = strings.TrimSpace(q.Title)
	q.Limit = model.ArticlePageSize
	q.Offset = (page - 1) * model.ArticlePageSize

	total, err := s.repo.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}

	result := &Page{
		Page:       page,
		Total:      total,
		TotalPages: (total + model.ArticlePageSize - 1) / model.ArticlePageSize,
	}
	if q.Offset >= total {
		return result, nil
	}

	articles, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	result.Articles = articles
	return result, nil
}

// Recent は最新の記事をn件返す。
func (s *Service) Recent(ctx context.Context, n int) ([]*model.Article, error) {
	articles, err := s.repo.List(ctx, model.ArticleQuery{Limit: n})
	if err != nil {
		return nil, fmt.Errorf("最新記事の取得に失敗しました: %w", err)
	}
	return articles, nil
}

// validate は必須項目、カテゴリ、画像URLを検証する。
func (s *Service) validate(a *model.Article) error {
	if missing := a.MissingRequiredFields(); len(missing) > 0 {
		return s.reject(metrics.RejectInvalid,
			model.NewInvalidArticleError("missing required fields: "+strings.Join(missing, ", ")))
	}
	if !model.IsValidCategory(a.Category) {
		return s.reject(metrics.RejectInvalid, model.NewInvalidCategoryError(a.Category))
	}
	if a.Img != "" && !render.IsSafeImageURL(a.Img) {
		return s.reject(metrics.RejectInvalid, model.NewInvalidArticleError("img must be an https or /uploads/ URL"))
	}
	return nil
}

// sanitizeContent はエディタ出力を検証し、ブロック内のテキストをサニタイズする。
func (s *Service) sanitizeContent(content json.RawMessage) (json.RawMessage, error) {
	if len(content) == 0 || string(content) == "null" {
		return nil, nil
	}
	if !json.Valid(content) {
		return nil, s.reject(metrics.RejectInvalid, model.NewInvalidArticleError("content is not valid JSON"))
	}
	if s.sanitizer == nil {
		return content, nil
	}
	sanitized, err := s.sanitizer.Sanitize(content)
	if err != nil {
		return nil, s.reject(metrics.RejectInvalid, model.NewInvalidArticleError("content is not an editor document"))
	}
	return sanitized, nil
}

func (s *Service) reject(reason string, err *model.APIError) error {
	if s.metrics != nil {
		s.metrics.RecordSaveRejected(reason)
	}
	return err
}
