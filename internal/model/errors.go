// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ドメインエラー。errors.Isで判定する。
var (
	// ErrInsufficientPlatforms は比較対象のプラットフォームが2つ未満であることを示す。
	ErrInsufficientPlatforms = errors.New("比較には2つ以上のプラットフォームが必要です")
	// ErrNoData はNotModified応答に対して比較元のキャッシュが存在しないことを示す。
	ErrNoData = errors.New("データがありません")
	// ErrNotModified はRemote Sourceがコンテンツ未変更を通知したことを示す。
	ErrNotModified = errors.New("コンテンツは未変更です")
	// ErrUnknownPlatform は未知のプラットフォームが指定されたことを示す。
	ErrUnknownPlatform = errors.New("未知のプラットフォームです")
	// ErrInvalidThreshold は類似度閾値が[0,1]の範囲外であることを示す。
	ErrInvalidThreshold = errors.New("類似度閾値は0以上1以下で指定してください")
	// ErrInvalidPreference はお気に入りやブロックキーワードの値が不正、または上限を超えたことを示す。
	ErrInvalidPreference = errors.New("設定値が不正です")
	// ErrPreferenceConflict は他の更新と競合し、設定を保存できなかったことを示す。
	ErrPreferenceConflict = errors.New("設定の更新が競合しました")
)

// RemoteErrorKind はRemote Sourceの失敗の分類。
type RemoteErrorKind string

const (
	RemoteInvalidURL      RemoteErrorKind = "invalid_url"
	RemoteInvalidResponse RemoteErrorKind = "invalid_response"
	RemoteClientError     RemoteErrorKind = "client_error"
	RemoteServerError     RemoteErrorKind = "server_error"
	RemoteDecodingFailed  RemoteErrorKind = "decoding_failed"
	RemoteUnexpected      RemoteErrorKind = "unexpected_status"
	// RemoteTransport は接続失敗・タイムアウト・キャンセル等、HTTP応答を得られなかった場合。
	RemoteTransport RemoteErrorKind = "transport_failed"
)

// RemoteError はRemote Sourceのトランスポート/プロトコル失敗を表す。
// コア内ではリトライせず、そのまま呼び出し元に伝播する。
type RemoteError struct {
	Kind       RemoteErrorKind
	Platform   Platform
	StatusCode int // ClientError/ServerError/Unexpectedの場合のHTTPステータス
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("remote %s (platform=%s", e.Kind, e.Platform)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は元のエラーを返す。
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError はRemoteErrorを生成する。
func NewRemoteError(kind RemoteErrorKind, platform Platform, statusCode int, err error) *RemoteError {
	return &RemoteError{Kind: kind, Platform: platform, StatusCode: statusCode, Err: err}
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInsufficientPlatforms = "INSUFFICIENT_PLATFORMS"
	ErrCodeUnknownPlatform       = "UNKNOWN_PLATFORM"
	ErrCodeInvalidThreshold      = "INVALID_THRESHOLD"
	ErrCodeInvalidParameter      = "INVALID_PARAMETER"
	ErrCodeNoData                = "NO_DATA"
	ErrCodeUpstreamFailed        = "UPSTREAM_FAILED"
	ErrCodeTopicNotFound         = "TOPIC_NOT_FOUND"
	ErrCodeInvalidPreference     = "INVALID_PREFERENCE"
	ErrCodePreferenceConflict    = "PREFERENCE_CONFLICT"
	ErrCodeRateLimited           = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewInsufficientPlatformsError はプラットフォーム数不足エラーを生成する。
func NewInsufficientPlatformsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientPlatforms,
		Message:  "比較には2つ以上のプラットフォームが必要です。",
		Category: "validation",
		Action:   "platformsに異なるプラットフォームを2つ以上指定してください。",
	}
}

// NewUnknownPlatformError は未知のプラットフォームエラーを生成する。
func NewUnknownPlatformError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownPlatform,
		Message:  fmt.Sprintf("未知のプラットフォームです: %s", detail),
		Category: "validation",
		Action:   "weibo、xiaohongshu、bilibili、douyin、x、zhihu のいずれかを指定してください。",
	}
}

// NewInvalidThresholdError は類似度閾値エラーを生成する。
func NewInvalidThresholdError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidThreshold,
		Message:  fmt.Sprintf("無効な類似度閾値です: %s", raw),
		Category: "validation",
		Action:   "thresholdには0以上1以下の数値を指定してください。",
	}
}

// NewInvalidParameterError はクエリパラメータの不正を表すエラーを生成する。
func NewInvalidParameterError(name, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("パラメータ %s が不正です: %s", name, reason),
		Category: "validation",
		Action:   "リクエストパラメータを確認してください。",
	}
}

// NewNoDataError はキャッシュ不在のNotModified応答に対するエラーを生成する。
func NewNoDataError() *APIError {
	return &APIError{
		Code:     ErrCodeNoData,
		Message:  "上流から未変更の応答を受け取りましたが、比較元のデータがありません。",
		Category: "upstream",
		Action:   "refresh=true を指定して再取得してください。",
	}
}

// NewUpstreamFailedError は上流データソースの失敗エラーを生成する。
func NewUpstreamFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("熱榜データの取得に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTopicNotFoundError は話題未検出エラーを生成する。
func NewTopicNotFoundError(topicID string) *APIError {
	return &APIError{
		Code:     ErrCodeTopicNotFound,
		Message:  fmt.Sprintf("指定された話題が見つかりません: %s", topicID),
		Category: "validation",
		Action:   "話題IDを確認するか、先に熱榜を取得してください。",
	}
}

// NewInvalidPreferenceError はお気に入り・ブロックキーワードの入力エラーを生成する。
func NewInvalidPreferenceError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPreference,
		Message:  fmt.Sprintf("設定値が不正です: %s", detail),
		Category: "validation",
		Action:   "値の長さと登録件数の上限を確認してください。",
	}
}

// NewPreferenceConflictError は設定更新の競合エラーを生成する。
func NewPreferenceConflictError() *APIError {
	return &APIError{
		Code:     ErrCodePreferenceConflict,
		Message:  "他の更新と競合したため設定を保存できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残し、利用者には返さない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
