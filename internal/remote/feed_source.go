package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/trendlens/internal/model"
)

// heatElement は話題の熱度を表すフィード拡張要素の名前。
// <heat>（名前空間なし）または <trend:heat> 等の名前空間付き要素を受け付ける。
const heatElement = "heat"

// FeedSource はプラットフォームごとのRSS/Atomフィードから熱榜を取得するSource。
// 記事の並び順を順位とみなし、有効期限は取得時刻+ttlとする。
type FeedSource struct {
	feedURLs    map[model.Platform]string
	mu          sync.RWMutex
	discovered  map[model.Platform]string
	ssrfGuard   SSRFValidator
	sanitizer   Sanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	ttl         time.Duration
	now         func() time.Time
}

// NewFeedSource はFeedSourceの新しいインスタンスを生成する。
func NewFeedSource(
	feedURLs map[model.Platform]string,
	ssrfGuard SSRFValidator,
	sanitizer Sanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	ttl time.Duration,
) *FeedSource {
	urls := make(map[model.Platform]string, len(feedURLs))
	for p, u := range feedURLs {
		urls[p] = u
	}
	return &FeedSource{
		feedURLs:    urls,
		discovered:  make(map[model.Platform]string),
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Platforms はフィードが設定されているプラットフォームを返す。
func (s *FeedSource) Platforms() []model.Platform {
	var ps []model.Platform
	for _, p := range model.AllPlatforms() {
		if _, ok := s.feedURLs[p]; ok {
			ps = append(ps, p)
		}
	}
	return ps
}

// Fetch はplatformのフィードを取得し、スナップショットに変換する。
// 設定URLがHTMLページを返した場合は<link rel="alternate">からフィードを検出して取得し直し、
// 以降は検出したURLを直接使う。
func (s *FeedSource) Fetch(ctx context.Context, platform model.Platform, validator string) (*model.Snapshot, error) {
	start := time.Now()

	feedURL, ok := s.feedURL(platform)
	if !ok {
		return nil, model.NewRemoteError(model.RemoteInvalidURL, platform, 0,
			fmt.Errorf("フィードURLが設定されていません"))
	}

	res, err := s.get(ctx, platform, feedURL, validator)
	if err != nil {
		return nil, err
	}

	if isHTML(res.contentType) {
		discovered, found := discoverFeedLink(res.body, feedURL)
		if !found {
			return nil, model.NewRemoteError(model.RemoteDecodingFailed, platform, res.statusCode,
				fmt.Errorf("HTMLページからフィードを検出できませんでした: %s", feedURL))
		}
		s.logger.Info("HTMLページからフィードを検出しました",
			slog.String("platform", string(platform)),
			slog.String("page_url", feedURL),
			slog.String("feed_url", discovered),
		)
		feedURL = discovered
		if res, err = s.get(ctx, platform, feedURL, validator); err != nil {
			return nil, err
		}
		s.rememberFeedURL(platform, feedURL)
	}

	parsedFeed, err := gofeed.NewParser().ParseString(string(res.body))
	if err != nil {
		s.logger.Error("フィードのパースに失敗しました",
			slog.String("platform", string(platform)),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRemoteError(model.RemoteDecodingFailed, platform, res.statusCode, err)
	}

	now := s.now()
	topics := s.convertItems(platform, parsedFeed.Items, now)

	snap := &model.Snapshot{
		ID:            uuid.NewString(),
		Platform:      platform,
		FetchedAt:     now,
		ValidUntil:    now.Add(s.ttl),
		ContentHash:   model.ContentHash(topics),
		SchemaVersion: model.CurrentSchemaVersion,
		Topics:        topics,
	}
	snap.Validator = res.etag
	if snap.Validator == "" {
		snap.Validator = `W/"` + snap.ContentHash + `"`
	}

	s.logger.Debug("フィードを取得しました",
		slog.String("platform", string(platform)),
		slog.Int("http_status", res.statusCode),
		slog.Int("topic_count", len(topics)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return snap, nil
}

// feedResponse は取得したフィード（またはHTMLページ）の本文とヘッダー。
type feedResponse struct {
	body        []byte
	statusCode  int
	contentType string
	etag        string
}

// get はSSRF検証の上でfeedURLを条件付きGETする。304はErrNotModifiedを返す。
func (s *FeedSource) get(ctx context.Context, platform model.Platform, feedURL, validator string) (*feedResponse, error) {
	if err := s.ssrfGuard.ValidateURL(feedURL); err != nil {
		s.logger.Error("SSRF検証に失敗しました",
			slog.String("platform", string(platform)),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRemoteError(model.RemoteInvalidURL, platform, 0, err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteInvalidURL, platform, 0, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.5, */*;q=0.1")

	// 条件付きGET: ETag
	if validator != "" {
		req.Header.Set("If-None-Match", validator)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteTransport, platform, 0, err)
	}
	defer resp.Body.Close()

	class := ClassifyHTTPStatus(resp.StatusCode)
	switch class {
	case StatusOK:
	case StatusNotModified:
		s.logger.Debug("フィードは未変更です（304）",
			slog.String("platform", string(platform)),
			slog.String("feed_url", feedURL),
		)
		return nil, model.ErrNotModified
	default:
		return nil, statusError(class, platform, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, s.maxBodySize)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteInvalidResponse, platform, resp.StatusCode, err)
	}

	return &feedResponse{
		body:        body,
		statusCode:  resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		etag:        resp.Header.Get("ETag"),
	}, nil
}

// feedURL はplatformの取得先を返す。HTMLページから検出済みならそのURLを優先する。
func (s *FeedSource) feedURL(platform model.Platform) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.discovered[platform]; ok {
		return u, true
	}
	u, ok := s.feedURLs[platform]
	return u, ok
}

func (s *FeedSource) rememberFeedURL(platform model.Platform, feedURL string) {
	s.mu.Lock()
	s.discovered[platform] = feedURL
	s.mu.Unlock()
}

// convertItems はgofeedの記事を話題に変換する。フィード内の順序を順位とする。
// タイトルが空の記事は除外し、順位は詰めて採番する。
func (s *FeedSource) convertItems(platform model.Platform, items []*gofeed.Item, fetchedAt time.Time) []model.Topic {
	topics := make([]model.Topic, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}
		title := s.sanitize(item.Title)
		if title == "" {
			continue
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}

		// IDはGUID、リンク、タイトルの順に最初に得られるキーから決定的に生成する
		key := item.GUID
		if key == "" {
			key = item.Link
		}
		if key == "" {
			key = title
		}

		link := item.Link
		if link == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			link = item.GUID
		}

		var tags []string
		if len(item.Categories) > 0 {
			tags = append(tags, item.Categories...)
		}

		topics = append(topics, model.Topic{
			ID:          TopicID(platform, key),
			Platform:    platform,
			Title:       title,
			Description: s.sanitize(description),
			Link:        link,
			HeatValue:   itemHeat(item),
			Rank:        len(topics) + 1,
			Tags:        tags,
			FetchedAt:   fetchedAt,
		})
	}

	return topics
}

func (s *FeedSource) sanitize(raw string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(raw)
	}
	return s.sanitizer.Sanitize(raw)
}

// itemHeat は記事の熱度要素を読み取る。要素がないか数値でない場合は0を返す。
func itemHeat(item *gofeed.Item) int {
	if v, ok := item.Custom[heatElement]; ok {
		return parseHeat(v)
	}
	for _, byName := range item.Extensions {
		if vals, ok := byName[heatElement]; ok && len(vals) > 0 {
			return parseHeat(vals[0].Value)
		}
	}
	return 0
}

// parseHeat は "1,234,567" のような区切り付きの数値も受け付ける。
func parseHeat(v string) int {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var _ Source = (*FeedSource)(nil)
