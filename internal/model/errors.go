// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, article, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeArticleNotFound     = "ARTICLE_NOT_FOUND"
	ErrCodeDuplicateSlug       = "DUPLICATE_SLUG"
	ErrCodeInvalidArticle      = "INVALID_ARTICLE"
	ErrCodeInvalidCategory     = "INVALID_CATEGORY"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeUsernameTaken       = "USERNAME_TAKEN"
	ErrCodeInvalidRegistration = "INVALID_REGISTRATION"
	ErrCodeOAuthDisabled       = "OAUTH_DISABLED"
	ErrCodeInvalidDraft        = "INVALID_DRAFT"
	ErrCodeDraftTooLarge       = "DRAFT_TOO_LARGE"
	ErrCodeUploadTooLarge      = "UPLOAD_TOO_LARGE"
	ErrCodeUnsupportedMedia    = "UNSUPPORTED_MEDIA"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeSSRFBlocked         = "SSRF_BLOCKED"
	ErrCodeFetchFailed         = "FETCH_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeCSRFFailed          = "CSRF_FAILED"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", slug),
		Category: "article",
		Action:   "記事のURLを確認してください。",
	}
}

// NewDuplicateSlugError は同じスラッグの記事が既に存在する場合のエラーを生成する。
func NewDuplicateSlugError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSlug,
		Message:  fmt.Sprintf("同じタイトルの記事が既に存在します: %s", slug),
		Category: "article",
		Action:   "別のタイトルを指定してください。",
	}
}

// NewInvalidArticleError は記事の入力値が不正な場合のエラーを生成する。
func NewInvalidArticleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArticle,
		Message:  fmt.Sprintf("記事の入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "タイトル、説明、カテゴリを入力してください。",
	}
}

// NewInvalidCategoryError は存在しないカテゴリが指定された場合のエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリ一覧から選択してください。",
	}
}

// NewForbiddenError は記事の編集権限がない場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この記事を編集する権限がありません。",
		Category: "auth",
		Action:   "記事の作成者または管理者のアカウントでログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCredentialsError はユーザー名またはパスワードが誤っている場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUsernameTakenError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("ユーザー名は既に使用されています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewInvalidRegistrationError は登録内容が不正な場合のエラーを生成する。
func NewInvalidRegistrationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRegistration,
		Message:  fmt.Sprintf("登録内容が不正です: %s", reason),
		Category: "validation",
		Action:   "ユーザー名と8文字以上のパスワードを入力してください。",
	}
}

// NewOAuthDisabledError は外部IdPログインが無効な場合のエラーを生成する。
func NewOAuthDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthDisabled,
		Message:  "外部アカウントでのログインは無効です。",
		Category: "auth",
		Action:   "ユーザー名とパスワードでログインしてください。",
	}
}

// NewInvalidDraftError は下書きの内容が不正な場合のエラーを生成する。
func NewInvalidDraftError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDraft,
		Message:  fmt.Sprintf("下書きの内容が不正です: %s", reason),
		Category: "validation",
		Action:   "エディタの出力をJSONのまま送信してください。",
	}
}

// NewDraftTooLargeError は下書きがサイズ上限を超えた場合のエラーを生成する。
func NewDraftTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeDraftTooLarge,
		Message:  fmt.Sprintf("下書きのサイズが上限（%dバイト）を超えています。", limit),
		Category: "validation",
		Action:   "内容を分割するか画像をアップロード機能で追加してください。",
	}
}

// NewUploadTooLargeError はアップロードがサイズ上限を超えた場合のエラーを生成する。
func NewUploadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", limit),
		Category: "upload",
		Action:   "より小さい画像を選択してください。",
	}
}

// NewUnsupportedMediaError は画像以外のファイルがアップロードされた場合のエラーを生成する。
func NewUnsupportedMediaError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMedia,
		Message:  fmt.Sprintf("対応していないファイル形式です: %s", contentType),
		Category: "upload",
		Action:   "PNG、JPEG、GIF、WebPのいずれかの画像を選択してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はリモート画像の取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "upload",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未ログインまたはセッション切れのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFFailedError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はリクエスト数が上限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
