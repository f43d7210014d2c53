package upload

import (
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

// ObjectStore はSupabase Storageクライアントのうち利用する操作。
type ObjectStore interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseStorage はSupabase Storageの公開バケットに画像を保存するStorage。
type SupabaseStorage struct {
	store  ObjectStore
	bucket string
}

// NewSupabaseStorage はプロジェクトURLとサービスキーからSupabaseStorageを生成する。
func NewSupabaseStorage(projectURL, apiKey, bucket string) (*SupabaseStorage, error) {
	client, err := supabase.NewClient(projectURL, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize supabase client: %w", err)
	}
	return NewSupabaseStorageWithStore(client.Storage, bucket), nil
}

// NewSupabaseStorageWithStore は任意のObjectStoreを使うSupabaseStorageを生成する。
func NewSupabaseStorageWithStore(store ObjectStore, bucket string) *SupabaseStorage {
	return &SupabaseStorage{store: store, bucket: bucket}
}

// Name はバックエンド名を返す。
func (s *SupabaseStorage) Name() string {
	return "supabase"
}

// Put は画像をバケットにアップロードし、公開URLを返す。
// SDKがcontextを受け取らないため、キャンセルはアップロード開始前にのみ確認する。
func (s *SupabaseStorage) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cacheControl := "31536000"
	upsert := false
	_, err := s.store.UploadFile(s.bucket, name, r, storage_go.FileOptions{
		ContentType:  &contentType,
		CacheControl: &cacheControl,
		Upsert:       &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to supabase bucket %s: %w", s.bucket, err)
	}

	url := s.store.GetPublicUrl(s.bucket, name).SignedURL
	if url == "" {
		return "", fmt.Errorf("supabase returned empty public url for %s", name)
	}
	return url, nil
}

var _ Storage = (*SupabaseStorage)(nil)
