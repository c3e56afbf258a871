// Package trending はプラットフォームごとの熱榜スナップショットの取得を調停する。
//
// Coordinatorはキャッシュが有効であればキャッシュから返し、
// そうでなければRemote Sourceから再検証付きで取得してキャッシュを置き換える。
// 複数プラットフォームの取得は並行に行い、1つでも失敗すれば全体を失敗とする。
package trending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/trendlens/internal/cache"
	"github.com/hitoshi/trendlens/internal/model"
	"github.com/hitoshi/trendlens/internal/remote"
)

// MetricsCollector はCoordinatorが記録するメトリクスのインターフェース。
type MetricsCollector interface {
	RecordCacheHit(platform string)
	RecordCacheMiss(platform string)
	RecordRemoteFetch(platform string, result string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordSnapshotsExpired(count int)
}

// リモート取得結果のラベル値。失敗時はRemoteErrorKindを使う。
const (
	resultOK          = "ok"
	resultNotModified = "not_modified"
	resultNoData      = "no_data"
	resultError       = "error"
)

// Blocklist はAggregatedとSearchTopicsの結果から除外するキーワードを提供する。
type Blocklist interface {
	BlockedKeywords(ctx context.Context) ([]string, error)
}

// Coordinator はキャッシュとRemote Sourceの間で取得方針を決定する。
type Coordinator struct {
	cache     *cache.SnapshotCache
	source    remote.Source
	metrics   MetricsCollector
	logger    *slog.Logger
	blocklist Blocklist
	now       func() time.Time
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。
// metricsがnilの場合はメトリクスを記録しない。
func NewCoordinator(
	snapshotCache *cache.SnapshotCache,
	source remote.Source,
	metrics MetricsCollector,
	logger *slog.Logger,
) *Coordinator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Coordinator{
		cache:   snapshotCache,
		source:  source,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// UseBlocklist はタイトルにブロックキーワードを含む話題を集約・検索結果から除外させる。
// キャッシュ上のスナップショットとFetchOne/FetchManyの結果はそのまま保つ。
func (c *Coordinator) UseBlocklist(b Blocklist) {
	c.blocklist = b
}

// FetchOne はplatformの最新スナップショットを返す。
// forceRefreshがfalseでキャッシュが有効期限内であれば、Remote Sourceを呼ばずにキャッシュを返す。
// それ以外はキャッシュの再検証トークンを付けてRemote Sourceから取得する。
//   - 取得成功: キャッシュを置き換えて返す
//   - 未変更: キャッシュがあれば有効期限を延長して返し、なければErrNoDataを返す
//   - 失敗: 期限切れのキャッシュにフォールバックせず、そのまま返す
func (c *Coordinator) FetchOne(ctx context.Context, platform model.Platform, forceRefresh bool) (*model.Snapshot, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownPlatform, platform)
	}

	cached, err := c.cache.Get(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("キャッシュの読み取りに失敗: %w", err)
	}

	if !forceRefresh && cached != nil && cached.IsValid(c.now()) {
		c.metrics.RecordCacheHit(string(platform))
		return cached, nil
	}
	c.metrics.RecordCacheMiss(string(platform))

	validator := ""
	if cached != nil {
		validator = cached.Validator
	}

	start := time.Now()
	fresh, err := c.source.Fetch(ctx, platform, validator)
	c.metrics.RecordFetchLatency(time.Since(start))

	if errors.Is(err, model.ErrNotModified) {
		c.metrics.RecordHTTPStatus(304)
		return c.revalidated(ctx, platform, cached)
	}
	if err != nil {
		c.recordFailure(platform, err)
		c.logger.Warn("熱榜の取得に失敗しました",
			slog.String("platform", string(platform)),
			slog.Bool("force_refresh", forceRefresh),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if fresh == nil || fresh.Platform != platform {
		c.metrics.RecordRemoteFetch(string(platform), string(model.RemoteInvalidResponse))
		return nil, model.NewRemoteError(model.RemoteInvalidResponse, platform, 0,
			fmt.Errorf("要求と異なるスナップショットが返されました"))
	}

	annotate(fresh, cached)

	if err := c.cache.Put(ctx, platform, fresh); err != nil {
		return nil, fmt.Errorf("キャッシュの書き込みに失敗: %w", err)
	}
	c.metrics.RecordRemoteFetch(string(platform), resultOK)

	c.logger.Info("熱榜を取得しました",
		slog.String("platform", string(platform)),
		slog.String("snapshot_id", fresh.ID),
		slog.Int("topic_count", len(fresh.Topics)),
		slog.Bool("force_refresh", forceRefresh),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return fresh, nil
}

// revalidated は未変更応答に対し、キャッシュの有効期間を元の長さで延長して返す。
func (c *Coordinator) revalidated(ctx context.Context, platform model.Platform, cached *model.Snapshot) (*model.Snapshot, error) {
	if cached == nil {
		c.metrics.RecordRemoteFetch(string(platform), resultNoData)
		c.logger.Error("比較元のキャッシュがないのに未変更応答を受け取りました",
			slog.String("platform", string(platform)),
		)
		return nil, fmt.Errorf("%w: platform=%s", model.ErrNoData, platform)
	}

	window := cached.ValidUntil.Sub(cached.FetchedAt)
	if window < 0 {
		window = 0
	}
	refreshed := cached.WithValidity(c.now().Add(window))
	if err := c.cache.Put(ctx, platform, refreshed); err != nil {
		return nil, fmt.Errorf("キャッシュの書き込みに失敗: %w", err)
	}
	c.metrics.RecordRemoteFetch(string(platform), resultNotModified)

	c.logger.Debug("熱榜は未変更のため有効期限を延長しました",
		slog.String("platform", string(platform)),
		slog.Time("valid_until", refreshed.ValidUntil),
	)

	return refreshed, nil
}

func (c *Coordinator) recordFailure(platform model.Platform, err error) {
	var re *model.RemoteError
	if errors.As(err, &re) {
		c.metrics.RecordRemoteFetch(string(platform), string(re.Kind))
		if re.StatusCode != 0 {
			c.metrics.RecordHTTPStatus(re.StatusCode)
		}
		return
	}
	c.metrics.RecordRemoteFetch(string(platform), resultError)
}

// FetchMany は指定プラットフォームのスナップショットを並行に取得し、要求順で返す。
// 重複したプラットフォームは1回だけ取得する。
// いずれかの取得が失敗すると、実行中の他の取得をキャンセルして最初のエラーを返す。
func (c *Coordinator) FetchMany(ctx context.Context, platforms []model.Platform, forceRefresh bool) ([]*model.Snapshot, error) {
	platforms = model.UniquePlatforms(platforms)
	for _, p := range platforms {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownPlatform, p)
		}
	}

	results := make([]*model.Snapshot, len(platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		g.Go(func() error {
			snap, err := c.FetchOne(gctx, p, forceRefresh)
			if err != nil {
				return err
			}
			results[i] = snap
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Warn("複数プラットフォームの取得を中断しました",
			slog.Any("platforms", platforms),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return results, nil
}

// FetchAll は全プラットフォームのスナップショットを取得する。
func (c *Coordinator) FetchAll(ctx context.Context, forceRefresh bool) ([]*model.Snapshot, error) {
	return c.FetchMany(ctx, model.AllPlatforms(), forceRefresh)
}

// ClearExpired は有効期限切れのスナップショットをキャッシュから削除し、削除したプラットフォームを返す。
func (c *Coordinator) ClearExpired(ctx context.Context) ([]model.Platform, error) {
	removed, err := c.cache.ExpireStale(ctx, c.now())
	if err != nil {
		return nil, fmt.Errorf("期限切れキャッシュの削除に失敗: %w", err)
	}
	c.metrics.RecordSnapshotsExpired(len(removed))

	if len(removed) > 0 {
		c.logger.Info("期限切れのスナップショットを削除しました",
			slog.Any("platforms", removed),
			slog.Int("count", len(removed)),
		)
	}
	return removed, nil
}

// CachedSnapshot はキャッシュ上のスナップショットを返す。Remote Sourceは呼ばない。
func (c *Coordinator) CachedSnapshot(ctx context.Context, platform model.Platform) (*model.Snapshot, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownPlatform, platform)
	}
	return c.cache.Get(ctx, platform)
}

type nopMetrics struct{}

func (nopMetrics) RecordCacheHit(string)            {}
func (nopMetrics) RecordCacheMiss(string)           {}
func (nopMetrics) RecordRemoteFetch(string, string) {}
func (nopMetrics) RecordHTTPStatus(int)             {}
func (nopMetrics) RecordFetchLatency(time.Duration) {}
func (nopMetrics) RecordSnapshotsExpired(int)       {}
