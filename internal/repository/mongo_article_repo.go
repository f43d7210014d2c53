package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/basedest/course-project/internal/model"
)

// MongoArticleRepo はMongoDBを使用した記事リポジトリ。
// 1記事を1ドキュメントとして保存し、_idには記事IDを使う。
type MongoArticleRepo struct {
	collection *mongo.Collection
}

// NewMongoArticleRepo はMongoArticleRepoを生成する。
func NewMongoArticleRepo(db *mongo.Database) *MongoArticleRepo {
	return &MongoArticleRepo{collection: db.Collection("articles")}
}

// articleDocument はarticlesコレクションのドキュメント。
// contentはエディタ出力を文字列のまま保持し、取得時に同じバイト列を返す。
type articleDocument struct {
	ID          string     `bson:"_id"`
	Slug        string     `bson:"slug"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	Category    string     `bson:"category"`
	Author      string     `bson:"author"`
	AuthorID    string     `bson:"author_id,omitempty"`
	Img         string     `bson:"img"`
	Tags        []string   `bson:"tags"`
	Content     string     `bson:"content,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	EditedAt    *time.Time `bson:"edited_at,omitempty"`
}

func toArticleDocument(a *model.Article) articleDocument {
	return articleDocument{
		ID:          a.ID,
		Slug:        a.Slug,
		Title:       a.Title,
		Description: a.Description,
		Category:    a.Category,
		Author:      a.Author,
		AuthorID:    a.AuthorID,
		Img:         a.Img,
		Tags:        nonNilTags(a.Tags),
		Content:     string(a.Content),
		CreatedAt:   a.CreatedAt.UTC(),
		EditedAt:    a.EditedAt,
	}
}

func (d *articleDocument) toModel() *model.Article {
	a := &model.Article{
		ID:          d.ID,
		Slug:        d.Slug,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Author:      d.Author,
		AuthorID:    d.AuthorID,
		Img:         d.Img,
		CreatedAt:   d.CreatedAt,
		EditedAt:    d.EditedAt,
	}
	if len(d.Tags) > 0 {
		a.Tags = d.Tags
	}
	if d.Content != "" {
		a.Content = json.RawMessage(d.Content)
	}
	return a
}

// EnsureIndexes はスラッグの一意インデックスと一覧用インデックスを作成する。
// 既に存在する場合は何もしない。
func (r *MongoArticleRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create article indexes: %w", err)
	}
	return nil
}

// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
func (r *MongoArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	var doc articleDocument
	err := r.collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by slug: %w", err)
	}
	return doc.toModel(), nil
}

// articleFilter は検索条件をMongoDBのフィルタに変換する。
func articleFilter(q model.ArticleQuery) bson.M {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Title != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.Title), Options: "i"}
	}
	return filter
}

// List は条件に一致する記事をcreated_at降順で返す。
func (r *MongoArticleRepo) List(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cursor, err := r.collection.Find(ctx, articleFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer cursor.Close(ctx)

	var articles []*model.Article
	for cursor.Next(ctx) {
		var doc articleDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode article: %w", err)
		}
		articles = append(articles, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return articles, nil
}

// Count は条件に一致する記事数を返す。
func (r *MongoArticleRepo) Count(ctx context.Context, q model.ArticleQuery) (int, error) {
	n, err := r.collection.CountDocuments(ctx, articleFilter(q))
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return int(n), nil
}

// Create は記事を作成する。スラッグが重複する場合はErrDuplicateSlugを返す。
func (r *MongoArticleRepo) Create(ctx context.Context, a *model.Article) error {
	_, err := r.collection.InsertOne(ctx, toArticleDocument(a))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// Update はスラッグで指定した記事の可変フィールドを上書きする。
func (r *MongoArticleRepo) Update(ctx context.Context, a *model.Article) (bool, error) {
	doc := toArticleDocument(a)
	set := bson.M{
		"description": doc.Description,
		"category":    doc.Category,
		"img":         doc.Img,
		"tags":        doc.Tags,
		"content":     doc.Content,
		"edited_at":   doc.EditedAt,
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"slug": a.Slug}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update article: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// DeleteBySlug は記事を削除する。
func (r *MongoArticleRepo) DeleteBySlug(ctx context.Context, slug string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"slug": slug})
	if err != nil {
		return false, fmt.Errorf("failed to delete article: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// compile-time interface check
var _ ArticleRepository = (*MongoArticleRepo)(nil)
