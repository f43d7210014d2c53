package article

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/basedest/course-project/internal/metrics"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/repository"
)

// mockArticleRepo はArticleRepositoryのモック。
type mockArticleRepo struct {
	findBySlugFn func(ctx context.Context, slug string) (*model.Article, error)
	listFn       func(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error)
	countFn      func(ctx context.Context, q model.ArticleQuery) (int, error)
	createFn     func(ctx context.Context, a *model.Article) error
	updateFn     func(ctx context.Context, a *model.Article) (bool, error)
	deleteFn     func(ctx context.Context, slug string) (bool, error)
}

func (m *mockArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	if m.findBySlugFn != nil {
		return m.findBySlugFn(ctx, slug)
	}
	return nil, nil
}

func (m *mockArticleRepo) List(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return nil, nil
}

func (m *mockArticleRepo) Count(ctx context.Context, q model.ArticleQuery) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, q)
	}
	return 0, nil
}

func (m *mockArticleRepo) Create(ctx context.Context, a *model.Article) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	return nil
}

func (m *mockArticleRepo) Update(ctx context.Context, a *model.Article) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, a)
	}
	return true, nil
}

func (m *mockArticleRepo) DeleteBySlug(ctx context.Context, slug string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, slug)
	}
	return true, nil
}

// mockSanitizer は入力をそのまま返すサニタイザ。
type mockSanitizer struct {
	called int
	err    error
}

func (m *mockSanitizer) Sanitize(content json.RawMessage) (json.RawMessage, error) {
	m.called++
	if m.err != nil {
		return nil, m.err
	}
	return content, nil
}

// fakeMetrics は記録された拒否理由を保持する。
type fakeMetrics struct {
	created  []string
	updated  []string
	rejected []string
}

func (f *fakeMetrics) RecordArticleCreated(category string) { f.created = append(f.created, category) }
func (f *fakeMetrics) RecordArticleUpdated(category string) { f.updated = append(f.updated, category) }
func (f *fakeMetrics) RecordSaveRejected(reason string) { f.rejected = append(f.rejected, reason) }
func (f *fakeMetrics) RecordUpload(backend, result string) {}
func (f *fakeMetrics) RecordDraftWrite(store string) {}
func (f *fakeMetrics) RecordHTTPStatus(statusCode int) {}
func (f *fakeMetrics) RecordRequestLatency(string, time.Duration) {}

var _ metrics.MetricsCollector = (*fakeMetrics)(nil)

var (
	alice = &model.User{ID: "user-alice", Username: "alice", Name: "Alice", Role: model.RoleUser}
	bob   = &model.User{ID: "user-bob", Username: "bob", Role: model.RoleUser}
	admin = &model.User{ID: "user-admin", Username: "root", Role: model.RoleAdmin}
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestService(repo *mockArticleRepo) (*Service, *fakeMetrics) {
	m := &fakeMetrics{}
	s := NewService(repo, &mockSanitizer{}, m)
	s.now = fixedNow
	return s, m
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	return apiErr.Code
}

func TestService_Create_Success(t *testing.T) {
	var stored *model.Article
	repo := &mockArticleRepo{
		createFn: func(ctx context.Context, a *model.Article) error {
			stored = a
			return nil
		},
	}
	s, m := newTestService(repo)

	content := json.RawMessage(`{"blocks":[]}`)
	got, err := s.Create(context.Background(), alice, &model.Article{
		Title:       "  Hello, World! 2024 ",
		Description: "desc",
		Category:    "backend",
		Author:      "someone else",
		Tags:        []string{"Go", "go", " backend "},
		Content:     content,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if got.Slug != "hello-world-2024" {
		t.Errorf("Slug = %q, want %q", got.Slug, "hello-world-2024")
	}
	if got.Title != "Hello, World! 2024" {
		t.Errorf("Title = %q, want trimmed", got.Title)
	}
	if got.Author != "Alice" || got.AuthorID != "user-alice" {
		t.Errorf("author = %q/%q, want Alice/user-alice", got.Author, got.AuthorID)
	}
	if !got.CreatedAt.Equal(fixedNow()) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, fixedNow())
	}
	if got.EditedAt != nil {
		t.Error("EditedAt should be nil on create")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "backend" {
		t.Errorf("Tags = %v, want [go backend]", got.Tags)
	}
	if got.ID == "" {
		t.Error("ID should be generated")
	}
	if stored != got {
		t.Error("returned article should be the stored one")
	}
	if len(m.created) != 1 || m.created[0] != "backend" {
		t.Errorf("created metrics = %v", m.created)
	}
}

func TestService_Create_KeepsProvidedCreatedAt(t *testing.T) {
	s, _ := newTestService(&mockArticleRepo{})
	createdAt := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := s.Create(context.Background(), alice, &model.Article{
		Title: "t", Description: "d", Category: "backend", CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, createdAt)
	}
}

func TestService_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		user     *model.User
		input    *model.Article
		wantCode string
	}{
		{
			name:     "no user",
			user:     nil,
			input:    &model.Article{Title: "t", Description: "d", Category: "backend"},
			wantCode: model.ErrCodeUserNotFound,
		},
		{
			name:     "nil input",
			user:     alice,
			input:    nil,
			wantCode: model.ErrCodeInvalidArticle,
		},
		{
			name:     "missing title",
			user:     alice,
			input:    &model.Article{Description: "d", Category: "backend"},
			wantCode: model.ErrCodeInvalidArticle,
		},
		{
			name:     "missing description",
			user:     alice,
			input:    &model.Article{Title: "t", Category: "backend"},
			wantCode: model.ErrCodeInvalidArticle,
		},
		{
			name:     "unknown category",
			user:     alice,
			input:    &model.Article{Title: "t", Description: "d", Category: "cooking"},
			wantCode: model.ErrCodeInvalidCategory,
		},
		{
			name:     "title without slug characters",
			user:     alice,
			input:    &model.Article{Title: "!!!", Description: "d", Category: "backend"},
			wantCode: model.ErrCodeInvalidArticle,
		},
		{
			name:     "invalid content",
			user:     alice,
			input:    &model.Article{Title: "t", Description: "d", Category: "backend", Content: json.RawMessage(`{"blocks":`)},
			wantCode: model.ErrCodeInvalidArticle,
		},
		{
			name:     "javascript img",
			user:     alice,
			input:    &model.Article{Title: "t", Description: "d", Category: "backend", Img: "javascript:alert(1)"},
			wantCode: model.ErrCodeInvalidArticle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockArticleRepo{
				createFn: func(ctx context.Context, a *model.Article) error {
					t.Fatal("repository must not be called for invalid input")
					return nil
				},
			}
			s, _ := newTestService(repo)

			_, err := s.Create(context.Background(), tt.user, tt.input)
			if got := apiErrorCode(t, err); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestService_Create_DuplicateSlug(t *testing.T) {
	repo := &mockArticleRepo{
		createFn: func(ctx context.Context, a *model.Article) error {
			return repository.ErrDuplicateSlug
		},
	}
	s, m := newTestService(repo)

	_, err := s.Create(context.Background(), alice, &model.Article{Title: "t", Description: "d", Category: "backend"})
	if got := apiErrorCode(t, err); got != model.ErrCodeDuplicateSlug {
		t.Errorf("code = %s, want %s", got, model.ErrCodeDuplicateSlug)
	}
	if len(m.rejected) != 1 || m.rejected[0] != metrics.RejectDuplicate {
		t.Errorf("rejected metrics = %v", m.rejected)
	}
}

func TestService_Create_RepositoryError(t *testing.T) {
	dbErr := errors.New("connection reset")
	repo := &mockArticleRepo{
		createFn: func(ctx context.Context, a *model.Article) error { return dbErr },
	}
	s, _ := newTestService(repo)

	_, err := s.Create(context.Background(), alice, &model.Article{Title: "t", Description: "d", Category: "backend"})
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}

func TestService_Create_SanitizerRejectsContent(t *testing.T) {
	s := NewService(&mockArticleRepo{}, &mockSanitizer{err: errors.New("bad block")}, nil)

	_, err := s.Create(context.Background(), alice, &model.Article{
		Title: "t", Description: "d", Category: "backend", Content: json.RawMessage(`{"blocks":[{"type":"paragraph","data":1}]}`),
	})
	if got := apiErrorCode(t, err); got != model.ErrCodeInvalidArticle {
		t.Errorf("code = %s, want %s", got, model.ErrCodeInvalidArticle)
	}
}

func existingArticle() *model.Article {
	return &model.Article{
		ID:          "a1",
		Slug:        "hello",
		Title:       "Hello",
		Description: "old",
		Category:    "backend",
		Author:      "Alice",
		AuthorID:    "user-alice",
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Img:         "/uploads/old.png",
		Tags:        []string{"go"},
	}
}

func TestService_Update_Success(t *testing.T) {
	var stored *model.Article
	repo := &mockArticleRepo{
		findBySlugFn: func(ctx context.Context, slug string) (*model.Article, error) {
			return existingArticle(), nil
		},
		updateFn: func(ctx context.Context, a *model.Article) (bool, error) {
			stored = a
			return true, nil
		},
	}
	s, m := newTestService(repo)

	got, err := s.Update(context.Background(), alice, "hello", &model.Article{
		Title:       "Renamed",
		Slug:        "renamed",
		Description: "new",
		Category:    "devops",
		Author:      "mallory",
		Content:     json.RawMessage(`{"blocks":[]}`),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got.Title != "Hello" || got.Slug != "hello" {
		t.Errorf("title/slug changed: %q/%q", got.Title, got.Slug)
	}
	if got.Author != "Alice" || !got.CreatedAt.Equal(existingArticle().CreatedAt) {
		t.Errorf("author/createdAt changed: %q/%v", got.Author, got.CreatedAt)
	}
	if got.Description != "new" || got.Category != "devops" {
		t.Errorf("mutable fields not updated: %+v", got)
	}
	if got.Img != "" || got.Tags != nil {
		t.Errorf("img/tags should be replaced by input: %q %v", got.Img, got.Tags)
	}
	if got.EditedAt == nil || !got.EditedAt.Equal(fixedNow()) {
		t.Errorf("EditedAt = %v, want %v", got.EditedAt, fixedNow())
	}
	if stored == nil || stored.Slug != "hello" {
		t.Errorf("stored = %+v", stored)
	}
	if len(m.updated) != 1 || m.updated[0] != "devops" {
		t.Errorf("updated metrics = %v", m.updated)
	}
}

func TestService_Update_Permissions(t *testing.T) {
	tests := []struct {
		name     string
		user     *model.User
		article  *model.Article
		wantCode string
	}{
		{name: "author", user: alice, article: existingArticle()},
		{name: "admin", user: admin, article: existingArticle()},
		{name: "other user", user: bob, article: existingArticle(), wantCode: model.ErrCodeForbidden},
		{
			name: "legacy article matched by author name",
			user: alice,
			article: func() *model.Article {
				a := existingArticle()
				a.AuthorID = ""
				return a
			}(),
		},
		{
			name: "legacy article with other author name",
			user: bob,
			article: func() *model.Article {
				a := existingArticle()
				a.AuthorID = ""
				return a
			}(),
			wantCode: model.ErrCodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockArticleRepo{
				findBySlugFn: func(ctx context.Context, slug string) (*model.Article, error) {
					return tt.article, nil
				},
			}
			s, _ := newTestService(repo)

			_, err := s.Update(context.Background(), tt.user, "hello", &model.Article{Description: "d", Category: "backend"})
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Update() error = %v", err)
				}
				return
			}
			if got := apiErrorCode(t, err); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestService_Update_NotFound(t *testing.T) {
	s, m := newTestService(&mockArticleRepo{})

	_, err := s.Update(context.Background(), alice, "missing", &model.Article{Description: "d", Category: "backend"})
	if got := apiErrorCode(t, err); got != model.ErrCodeArticleNotFound {
		t.Errorf("code = %s, want %s", got, model.ErrCodeArticleNotFound)
	}
	if len(m.rejected) != 1 || m.rejected[0] != metrics.RejectNotFound {
		t.Errorf("rejected metrics = %v", m.rejected)
	}
}

func TestService_Update_DeletedConcurrently(t *testing.T) {
	repo := &mockArticleRepo{
		findBySlugFn: func(ctx context.Context, slug string) (*model.Article, error) {
			return existingArticle(), nil
		},
		updateFn: func(ctx context.Context, a *model.Article) (bool, error) {
			return false, nil
		},
	}
	s, _ := newTestService(repo)

	_, err := s.Update(context.Background(), alice, "hello", &model.Article{Description: "d", Category: "backend"})
	if got := apiErrorCode(t, err); got != model.ErrCodeArticleNotFound {
		t.Errorf("code = %s, want %s", got, model.ErrCodeArticleNotFound)
	}
}

func TestService_Delete(t *testing.T) {
	repo := &mockArticleRepo{
		findBySlugFn: func(ctx context.Context, slug string) (*model.Article, error) {
			return existingArticle(), nil
		},
	}
	s, _ := newTestService(repo)

	if err := s.Delete(context.Background(), bob, "hello"); apiErrorCode(t, err) != model.ErrCodeForbidden {
		t.Errorf("Delete by other user: err = %v", err)
	}
	if err := s.Delete(context.Background(), alice, "hello"); err != nil {
		t.Errorf("Delete by author: err = %v", err)
	}
}

func TestService_GetBySlug(t *testing.T) {
	repo := &mockArticleRepo{
		findBySlugFn: func(ctx context.Context, slug string) (*model.Article, error) {
			if slug == "hello" {
				return existingArticle(), nil
			}
			return nil, nil
		},
	}
	s, _ := newTestService(repo)

	got, err := s.GetBySlug(context.Background(), "hello")
	if err != nil || got.Slug != "hello" {
		t.Fatalf("GetBySlug(hello) = %v, %v", got, err)
	}

	_, err = s.GetBySlug(context.Background(), "missing")
	if code := apiErrorCode(t, err); code != model.ErrCodeArticleNotFound {
		t.Errorf("code = %s, want %s", code, model.ErrCodeArticleNotFound)
	}
}

func TestService_List_Pagination(t *testing.T) {
	var gotQuery model.ArticleQuery
	repo := &mockArticleRepo{
		countFn: func(ctx context.Context, q model.ArticleQuery) (int, error) { return 25, nil },
		listFn: func(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error) {
			gotQuery = q
			return []*model.Article{existingArticle()}, nil
		},
	}
	s, _ := newTestService(repo)

	page, err := s.List(context.Background(), model.ArticleQuery{Category: "backend", Title: "  go "}, 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if gotQuery.Offset != 20 || gotQuery.Limit != model.ArticlePageSize {
		t.Errorf("offset/limit = %d/%d, want 20/%d", gotQuery.Offset, gotQuery.Limit, model.ArticlePageSize)
	}
	if gotQuery.Title != "go" || gotQuery.Category != "backend" {
		t.Errorf("query = %+v", gotQuery)
	}
	if page.TotalPages != 3 || page.Page != 3 || page.Total != 25 {
		t.Errorf("page = %+v", page)
	}
	if !page.HasPrev() || page.HasNext() {
		t.Errorf("HasPrev/HasNext = %v/%v, want true/false", page.HasPrev(), page.HasNext())
	}
}

func TestService_List_PageBelowOne(t *testing.T) {
	var gotOffset = -1
	repo := &mockArticleRepo{
		countFn: func(ctx context.Context, q model.ArticleQuery) (int, error) { return 1, nil },
		listFn: func(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error) {
			gotOffset = q.Offset
			return nil, nil
		},
	}
	s, _ := newTestService(repo)

	page, err := s.List(context.Background(), model.ArticleQuery{}, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Page != 1 || gotOffset != 0 {
		t.Errorf("page = %d, offset = %d; want 1, 0", page.Page, gotOffset)
	}
}

func TestService_List_PastLastPageSkipsQuery(t *testing.T) {
	repo := &mockArticleRepo{
		countFn: func(ctx context.Context, q model.ArticleQuery) (int, error) { return 5, nil },
		listFn: func(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error) {
			t.Fatal("List must not be called past the last page")
			return nil, nil
		},
	}
	s, _ := newTestService(repo)

	page, err := s.List(context.Background(), model.ArticleQuery{}, 4)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Articles) != 0 || page.TotalPages != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestService_Recent(t *testing.T) {
	var gotLimit int
	repo := &mockArticleRepo{
		listFn: func(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error) {
			gotLimit = q.Limit
			return []*model.Article{existingArticle()}, nil
		},
	}
	s, _ := newTestService(repo)

	got, err := s.Recent(context.Background(), 20)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent() = %v, %v", got, err)
	}
	if gotLimit != 20 {
		t.Errorf("limit = %d, want 20", gotLimit)
	}
}

func TestCanEdit(t *testing.T) {
	if CanEdit(nil, existingArticle()) {
		t.Error("anonymous user must not edit")
	}
	if CanEdit(alice, nil) {
		t.Error("nil article must not be editable")
	}
	if !CanEdit(alice, existingArticle()) {
		t.Error("author should be able to edit")
	}
}
