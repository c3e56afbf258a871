package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/trendlens/internal/model"
)

// snapshotDTO はスナップショットAPIのレスポンス形式。
type snapshotDTO struct {
	ID            string     `json:"id"`
	Platform      string     `json:"platform"`
	FetchedAt     time.Time  `json:"fetchedAt"`
	ValidUntil    time.Time  `json:"validUntil"`
	ContentHash   string     `json:"contentHash"`
	SchemaVersion int        `json:"schemaVersion"`
	Topics        []topicDTO `json:"topics"`
}

type topicDTO struct {
	ID          string                `json:"id"`
	Platform    string                `json:"platform"`
	Title       string                `json:"title"`
	Description *string               `json:"description"`
	HeatValue   int                   `json:"heatValue"`
	Rank        int                   `json:"rank"`
	Link        *string               `json:"link"`
	Tags        []string              `json:"tags"`
	FetchedAt   time.Time             `json:"fetchedAt"`
	RankChange  *model.RankChange     `json:"rankChange,omitempty"`
	HeatHistory []model.HeatDataPoint `json:"heatHistory,omitempty"`
}

// HTTPSource はJSONのスナップショットAPI（{baseURL}/snapshots/{platform}/latest.json）から取得するSource。
type HTTPSource struct {
	baseURL     string
	ssrfGuard   SSRFValidator
	sanitizer   Sanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	defaultTTL  time.Duration
	now         func() time.Time
}

// NewHTTPSource はHTTPSourceの新しいインスタンスを生成する。
// defaultTTLはレスポンスにvalidUntilが含まれない場合の有効期間。
func NewHTTPSource(
	baseURL string,
	ssrfGuard SSRFValidator,
	sanitizer Sanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	defaultTTL time.Duration,
) *HTTPSource {
	return &HTTPSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		defaultTTL:  defaultTTL,
		now:         time.Now,
	}
}

// SnapshotURL はplatformの最新スナップショットのURLを返す。
func (s *HTTPSource) SnapshotURL(platform model.Platform) (string, error) {
	if s.baseURL == "" {
		return "", fmt.Errorf("ベースURLが設定されていません")
	}
	u, err := url.JoinPath(s.baseURL, "snapshots", string(platform), "latest.json")
	if err != nil {
		return "", fmt.Errorf("URLの構築に失敗しました: %w", err)
	}
	return u, nil
}

// Fetch はスナップショットAPIから最新スナップショットを取得する。
func (s *HTTPSource) Fetch(ctx context.Context, platform model.Platform, validator string) (*model.Snapshot, error) {
	start := time.Now()

	rawURL, err := s.SnapshotURL(platform)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteInvalidURL, platform, 0, err)
	}

	// SSRF検証
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		s.logger.Error("SSRF検証に失敗しました",
			slog.String("platform", string(platform)),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRemoteError(model.RemoteInvalidURL, platform, 0, err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteInvalidURL, platform, 0, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

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
	s.logger.Debug("スナップショットAPIが応答しました",
		slog.String("platform", string(platform)),
		slog.Int("http_status", resp.StatusCode),
		slog.String("result", class.String()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	switch class {
	case StatusOK:
	case StatusNotModified:
		return nil, model.ErrNotModified
	default:
		return nil, statusError(class, platform, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, s.maxBodySize)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteInvalidResponse, platform, resp.StatusCode, err)
	}

	var dto snapshotDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, model.NewRemoteError(model.RemoteDecodingFailed, platform, resp.StatusCode, err)
	}

	snap, err := s.toSnapshot(platform, &dto)
	if err != nil {
		return nil, model.NewRemoteError(model.RemoteInvalidResponse, platform, resp.StatusCode, err)
	}

	snap.Validator = resp.Header.Get("ETag")
	if snap.Validator == "" {
		// ETagを返さないAPIでも再検証できるよう、コンテンツハッシュから弱いETagを作る
		snap.Validator = `W/"` + snap.ContentHash + `"`
	}

	return snap, nil
}

// toSnapshot はDTOを検証してドメインのSnapshotに変換する。
func (s *HTTPSource) toSnapshot(platform model.Platform, dto *snapshotDTO) (*model.Snapshot, error) {
	if dto.Platform != "" && model.Platform(dto.Platform) != platform {
		return nil, fmt.Errorf("要求と異なるプラットフォームのスナップショットです: %s", dto.Platform)
	}
	if dto.SchemaVersion > model.CurrentSchemaVersion {
		return nil, fmt.Errorf("未対応のスキーマバージョンです: %d", dto.SchemaVersion)
	}

	now := s.now()
	fetchedAt := dto.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = now
	}
	validUntil := dto.ValidUntil
	if validUntil.IsZero() {
		validUntil = fetchedAt.Add(s.defaultTTL)
	}

	topics := make([]model.Topic, 0, len(dto.Topics))
	for i, t := range dto.Topics {
		if t.Platform != "" && model.Platform(t.Platform) != platform {
			return nil, fmt.Errorf("topics[%d] のプラットフォームが一致しません: %s", i, t.Platform)
		}
		title := s.sanitize(t.Title)
		if title == "" {
			return nil, fmt.Errorf("topics[%d] のタイトルが空です", i)
		}
		if t.HeatValue < 0 {
			return nil, fmt.Errorf("topics[%d] の熱度が負の値です: %d", i, t.HeatValue)
		}

		topic := model.Topic{
			ID:          t.ID,
			Platform:    platform,
			Title:       title,
			Description: s.sanitize(deref(t.Description)),
			Link:        deref(t.Link),
			HeatValue:   t.HeatValue,
			Rank:        t.Rank,
			Tags:        t.Tags,
			FetchedAt:   t.FetchedAt,
			HeatHistory: t.HeatHistory,
		}
		if topic.ID == "" {
			topic.ID = TopicID(platform, title)
		}
		if topic.Rank <= 0 {
			topic.Rank = i + 1
		}
		if topic.FetchedAt.IsZero() {
			topic.FetchedAt = fetchedAt
		}
		if t.RankChange != nil {
			topic.RankChange = *t.RankChange
		}
		topics = append(topics, topic)
	}

	snap := &model.Snapshot{
		ID:            dto.ID,
		Platform:      platform,
		FetchedAt:     fetchedAt,
		ValidUntil:    validUntil,
		ContentHash:   dto.ContentHash,
		SchemaVersion: dto.SchemaVersion,
		Topics:        topics,
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.ContentHash == "" {
		snap.ContentHash = model.ContentHash(topics)
	}
	if snap.SchemaVersion == 0 {
		snap.SchemaVersion = model.CurrentSchemaVersion
	}
	return snap, nil
}

func (s *HTTPSource) sanitize(raw string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(raw)
	}
	return s.sanitizer.Sanitize(raw)
}

// TopicID はIDを持たない話題に対し、プラットフォームとキーから決定的なIDを生成する。
// 同じ話題は取得のたびに同じIDになる。
func TopicID(platform model.Platform, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(platform)+"|"+key)).String()
}

// readLimited は最大maxBytesまで読み込み、超過した場合はエラーを返す。
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("レスポンスボディが上限（%dバイト）を超えています", maxBytes)
	}
	return body, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ Source = (*HTTPSource)(nil)
