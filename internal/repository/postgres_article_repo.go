package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/basedest/course-project/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

const articleColumns = `id, slug, title, description, category, author, author_id, img, tags, content, created_at, edited_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*model.Article, error) {
	a := &model.Article{}
	var (
		authorID sql.NullString
		tags     pq.StringArray
		content  []byte
		editedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Description, &a.Category, &a.Author,
		&authorID, &a.Img, &tags, &content, &a.CreatedAt, &editedAt)
	if err != nil {
		return nil, err
	}
	a.AuthorID = authorID.String
	if len(tags) > 0 {
		a.Tags = []string(tags)
	}
	if len(content) > 0 {
		a.Content = json.RawMessage(content)
	}
	if editedAt.Valid {
		t := editedAt.Time
		a.EditedAt = &t
	}
	return a, nil
}

// nullableJSON はJSONカラムに渡す値を返す。空の場合はNULLにする。
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = $1`,
		slug,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by slug: %w", err)
	}
	return a, nil
}

// likeEscaper はLIKEパターンの特殊文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause は検索条件からWHERE句と引数を組み立てる。
func whereClause(q model.ArticleQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if q.Category != "" {
		args = append(args, q.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.Title != "" {
		args = append(args, likeEscaper.Replace(q.Title))
		conds = append(conds, fmt.Sprintf("title ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List は条件に一致する記事をcreated_at降順で返す。
func (r *PostgresArticleRepo) List(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error) {
	where, args := whereClause(q)
	query := `SELECT ` + articleColumns + ` FROM articles` + where + ` ORDER BY created_at DESC, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

// Count は条件に一致する記事数を返す。
func (r *PostgresArticleRepo) Count(ctx context.Context, q model.ArticleQuery) (int, error) {
	where, args := whereClause(q)
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM articles`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// Create は記事を作成する。スラッグが重複する場合はErrDuplicateSlugを返す。
func (r *PostgresArticleRepo) Create(ctx context.Context, a *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, slug, title, description, category, author, author_id, img, tags, content, created_at, edited_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Slug, a.Title, a.Description, a.Category, a.Author, nullableString(a.AuthorID),
		a.Img, pq.Array(nonNilTags(a.Tags)), nullableJSON(a.Content), a.CreatedAt, a.EditedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// Update はスラッグで指定した記事の可変フィールドを上書きする。
func (r *PostgresArticleRepo) Update(ctx context.Context, a *model.Article) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE articles
		 SET description = $2, category = $3, img = $4, tags = $5, content = $6, edited_at = $7
		 WHERE slug = $1`,
		a.Slug, a.Description, a.Category, a.Img, pq.Array(nonNilTags(a.Tags)), nullableJSON(a.Content), a.EditedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update article: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteBySlug は記事を削除する。
func (r *PostgresArticleRepo) DeleteBySlug(ctx context.Context, slug string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE slug = $1`, slug)
	if err != nil {
		return false, fmt.Errorf("failed to delete article: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// nonNilTags はtagsカラムのNOT NULL制約のためnilを空スライスに変換する。
func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
