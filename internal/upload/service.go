package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/basedest/course-project/internal/metrics"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/security"
)

// DefaultMaxSize はアップロード画像の既定の最大サイズ（5MB）。
const DefaultMaxSize int64 = 5 << 20

// remoteFetchTimeout はURL指定の画像取得のタイムアウト。
const remoteFetchTimeout = 10 * time.Second

// allowedTypes は受け付ける画像のMIMEタイプと保存時の拡張子。
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Result はアップロード結果。
type Result struct {
	SecureURL string `json:"secure_url"`
}

// Service は画像アップロードのサービス層。
type Service struct {
	storage Storage
	guard   security.SSRFGuardService
	metrics metrics.MetricsCollector
	maxSize int64
}

// NewService はServiceの新しいインスタンスを生成する。
// maxSizeが0以下の場合はDefaultMaxSizeを使う。guardがnilの場合はURL指定のアップロードを受け付けない。
func NewService(storage Storage, guard security.SSRFGuardService, collector metrics.MetricsCollector, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{
		storage: storage,
		guard:   guard,
		metrics: collector,
		maxSize: maxSize,
	}
}

// MaxSize は1ファイルの最大バイト数を返す。
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Upload は画像を検証して保存し、公開URLを返す。
// 形式はContent-Typeヘッダではなく先頭バイトから判定する。
func (s *Service) Upload(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("アップロードの読み取りに失敗しました: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, model.NewUploadTooLargeError(s.maxSize)
	}
	return s.store(ctx, data)
}

// UploadFromURL は指定URLの画像を取得して保存する。
// 取得にはプライベートネットワーク宛ての接続を拒否するクライアントを使う。
func (s *Service) UploadFromURL(ctx context.Context, rawURL string) (*Result, error) {
	if s.guard == nil {
		return nil, model.NewInvalidURLError("remote upload is disabled")
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrBlockedURL) {
			slog.Warn("remote upload blocked", slog.String("url", rawURL), slog.String("error", err.Error()))
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("Accept", "image/*")

	resp, err := s.guard.NewSafeClient(remoteFetchTimeout).Do(req)
	if err != nil {
		slog.Warn("remote image fetch failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		return nil, model.NewFetchFailedError("request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	if resp.ContentLength > s.maxSize {
		return nil, model.NewUploadTooLargeError(s.maxSize)
	}

	return s.Upload(ctx, resp.Body)
}

func (s *Service) store(ctx context.Context, data []byte) (*Result, error) {
	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, model.NewUnsupportedMediaError(contentType)
	}

	name := uuid.NewString() + ext
	url, err := s.storage.Put(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		s.record("error")
		return nil, fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	s.record("ok")

	slog.Info("画像をアップロードしました",
		slog.String("backend", s.storage.Name()),
		slog.String("object", name),
		slog.Int("size", len(data)),
	)
	return &Result{SecureURL: url}, nil
}

func (s *Service) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordUpload(s.storage.Name(), result)
	}
}
