package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// ボットゲートウェイがユーザーに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, judge, session, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUsernameNotFound   = "USERNAME_NOT_FOUND"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeDuplicateLink      = "DUPLICATE_LINK"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeVerifiedNotSaved   = "VERIFIED_NOT_SAVED"
	ErrCodeInvalidPlatform    = "INVALID_PLATFORM"
	ErrCodeLinkNotFound       = "LINK_NOT_FOUND"
)

// NewUsernameNotFoundError はジャッジ上にユーザーが存在しない場合のエラーを生成する。
func NewUsernameNotFoundError(platform Platform, username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameNotFound,
		Message:  fmt.Sprintf("%s 上にユーザー %s が見つかりません。", platform, username),
		Category: "judge",
		Action:   "ハンドル名のつづりを確認してください。",
	}
}

// NewBackendUnavailableError はジャッジAPIへの到達失敗エラーを生成する。
// ネットワーク障害・タイムアウト・非2xx応答が該当し、リトライ可能。
func NewBackendUnavailableError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  fmt.Sprintf("%s への問い合わせに失敗しました。", platform),
		Category: "judge",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDuplicateLinkError は同一ギルド内で既に別ユーザーが連携済みの場合のエラーを生成する。
func NewDuplicateLinkError(platform Platform, username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateLink,
		Message:  fmt.Sprintf("%s のアカウント %s はこのサーバーで既に別のユーザーと連携されています。", platform, username),
		Category: "validation",
		Action:   "自分のアカウントのハンドル名を指定してください。",
	}
}

// NewSessionNotFoundError は進行中の検証セッションが存在しない場合のエラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "進行中の検証セッションがありません。",
		Category: "session",
		Action:   "先に連携コマンドでチャレンジを開始してください。",
	}
}

// NewSessionExpiredError は検証セッションが期限切れの場合のエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "検証セッションの有効期限が切れました。",
		Category: "session",
		Action:   "連携コマンドで新しいチャレンジを開始してください。",
	}
}

// NewVerifiedNotSavedError は提出の照合には成功したが
// 連携情報の保存に失敗した場合のエラーを生成する。
// セッションは維持されるため、再連携ではなく検証の再実行で回復できる。
func NewVerifiedNotSavedError() *APIError {
	return &APIError{
		Code:     ErrCodeVerifiedNotSaved,
		Message:  "提出は確認できましたが、連携情報の保存に失敗しました。",
		Category: "system",
		Action:   "検証コマンドをもう一度実行してください。再提出は不要です。",
	}
}

// NewInvalidPlatformError はサポート外のプラットフォーム指定エラーを生成する。
func NewInvalidPlatformError(s string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlatform,
		Message:  fmt.Sprintf("サポートされていないプラットフォームです: %s", s),
		Category: "validation",
		Action:   "codeforces または codechef を指定してください。",
	}
}

// NewLinkNotFoundError は連携解除対象が存在しない場合のエラーを生成する。
func NewLinkNotFoundError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeLinkNotFound,
		Message:  fmt.Sprintf("%s の連携済みアカウントが見つかりません。", platform),
		Category: "validation",
		Action:   "連携状況を確認してください。",
	}
}
