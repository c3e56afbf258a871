package remote

import "github.com/hitoshi/trendlens/internal/model"

// StatusClass はHTTPステータスコードに基づくフェッチ結果の分類。
type StatusClass int

const (
	// StatusOK はフェッチ成功（2xx）。
	StatusOK StatusClass = iota
	// StatusNotModified はコンテンツ未変更（304）。
	StatusNotModified
	// StatusClientError はクライアントエラー（4xx）。
	StatusClientError
	// StatusServerError はサーバーエラー（5xx）。
	StatusServerError
	// StatusUnexpected は上記以外のステータスコード。
	StatusUnexpected
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		return StatusOK
	case statusCode == 304:
		return StatusNotModified
	case statusCode >= 400 && statusCode <= 499:
		return StatusClientError
	case statusCode >= 500 && statusCode <= 599:
		return StatusServerError
	default:
		return StatusUnexpected
	}
}

// statusError は成功・未変更以外のステータスをRemoteErrorに変換する。
func statusError(class StatusClass, platform model.Platform, statusCode int) error {
	switch class {
	case StatusClientError:
		return model.NewRemoteError(model.RemoteClientError, platform, statusCode, nil)
	case StatusServerError:
		return model.NewRemoteError(model.RemoteServerError, platform, statusCode, nil)
	default:
		return model.NewRemoteError(model.RemoteUnexpected, platform, statusCode, nil)
	}
}

// String はログ出力用の分類名を返す。
func (c StatusClass) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusNotModified:
		return "not_modified"
	case StatusClientError:
		return "client_error"
	case StatusServerError:
		return "server_error"
	default:
		return "unexpected"
	}
}
