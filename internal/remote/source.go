// Package remote は熱榜スナップショットを外部から取得するRemote Sourceを提供する。
//
// HTTPSourceはJSONのスナップショットAPIを、FeedSourceはRSS/Atomフィードを取得元とする。
// いずれも再検証トークン（ETag）による条件付きGETに対応し、
// コンテンツ未変更の場合はmodel.ErrNotModifiedを返す。
// 失敗は*model.RemoteErrorとして返し、リトライは行わない。
package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// Source はプラットフォームの最新スナップショットを取得するインターフェース。
type Source interface {
	// Fetch はplatformの最新スナップショットを取得する。
	// validatorが空でなく、取得元のコンテンツが未変更の場合はmodel.ErrNotModifiedを返す。
	// 成功時は新しい再検証トークンをSnapshot.Validatorに設定する。
	Fetch(ctx context.Context, platform model.Platform, validator string) (*model.Snapshot, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Sanitizer は取り込んだテキストを平文化するインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

const userAgent = "TrendLens/1.0 (+https://github.com/hitoshi/trendlens)"

// Router はプラットフォームごとに取得元を切り替えるSource。
// 個別に登録されていないプラットフォームはfallbackで取得する。
type Router struct {
	fallback Source
	routes   map[model.Platform]Source
}

// NewRouter はfallbackを既定の取得元とするRouterを生成する。
func NewRouter(fallback Source) *Router {
	return &Router{
		fallback: fallback,
		routes:   make(map[model.Platform]Source),
	}
}

// Route はplatformの取得元をsourceに設定する。起動時の構築でのみ使用する。
func (r *Router) Route(platform model.Platform, source Source) *Router {
	r.routes[platform] = source
	return r
}

// Fetch はplatformに対応する取得元に委譲する。
func (r *Router) Fetch(ctx context.Context, platform model.Platform, validator string) (*model.Snapshot, error) {
	if src, ok := r.routes[platform]; ok {
		return src.Fetch(ctx, platform, validator)
	}
	if r.fallback == nil {
		return nil, model.NewRemoteError(model.RemoteInvalidURL, platform, 0,
			fmt.Errorf("取得元が設定されていません"))
	}
	return r.fallback.Fetch(ctx, platform, validator)
}

var _ Source = (*Router)(nil)
