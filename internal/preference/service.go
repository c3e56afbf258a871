// Package preference はお気に入り話題とブロックキーワードを管理する。
//
// 設定はプロセス全体で1件（model.DefaultPreferenceID）だけを持ち、
// 話題の実体はキャッシュ済みスナップショットから都度解決する。
package preference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/trendlens/internal/model"
	"github.com/hitoshi/trendlens/internal/repository"
)

// TopicFinder はIDから話題を解決する。trending.Coordinatorが実装する。
type TopicFinder interface {
	TopicByID(ctx context.Context, id string) (*model.Topic, error)
}

// Service はお気に入りとブロックキーワードのサービス。
type Service struct {
	repo   repository.PreferenceRepository
	topics TopicFinder
	logger *slog.Logger
	id     string
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.PreferenceRepository, topics TopicFinder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		topics: topics,
		logger: logger,
		id:     model.DefaultPreferenceID,
		now:    time.Now,
	}
}

// Preference は現在の設定を返す。
func (s *Service) Preference(ctx context.Context) (*model.Preference, error) {
	return s.repo.Find(ctx, s.id)
}

// AddFavorite は話題をお気に入りに追加する。話題がキャッシュに存在するかは問わない。
func (s *Service) AddFavorite(ctx context.Context, topicID string) error {
	topicID, err := normalizeTopicID(topicID)
	if err != nil {
		return err
	}

	_, err = s.repo.Update(ctx, s.id, func(p *model.Preference) error {
		if p.IsFavorite(topicID) {
			return nil
		}
		if len(p.FavoriteTopicIDs) >= model.MaxFavoriteTopics {
			return fmt.Errorf("%w: お気に入りは%d件までです", model.ErrInvalidPreference, model.MaxFavoriteTopics)
		}
		p.AddFavorite(topicID)
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("お気に入りに追加しました", slog.String("topic_id", topicID))
	return nil
}

// RemoveFavorite は話題をお気に入りから外す。登録されていなくてもエラーにしない。
func (s *Service) RemoveFavorite(ctx context.Context, topicID string) error {
	topicID, err := normalizeTopicID(topicID)
	if err != nil {
		return err
	}

	_, err = s.repo.Update(ctx, s.id, func(p *model.Preference) error {
		if p.RemoveFavorite(topicID) {
			p.UpdatedAt = s.now()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("お気に入りから削除しました", slog.String("topic_id", topicID))
	return nil
}

// IsFavorite は話題がお気に入りに含まれるかを返す。
func (s *Service) IsFavorite(ctx context.Context, topicID string) (bool, error) {
	topicID, err := normalizeTopicID(topicID)
	if err != nil {
		return false, err
	}
	p, err := s.repo.Find(ctx, s.id)
	if err != nil {
		return false, err
	}
	return p.IsFavorite(topicID), nil
}

// FavoriteTopics はお気に入り登録順に話題を返す。
// キャッシュから消えた話題は結果に含めない（お気に入り自体は残す）。
func (s *Service) FavoriteTopics(ctx context.Context) ([]model.Topic, error) {
	p, err := s.repo.Find(ctx, s.id)
	if err != nil {
		return nil, err
	}

	topics := make([]model.Topic, 0, len(p.FavoriteTopicIDs))
	for _, id := range p.FavoriteTopicIDs {
		t, err := s.topics.TopicByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			topics = append(topics, *t)
		}
	}
	return topics, nil
}

// BlockedKeywords は登録済みのブロックキーワードを返す。
func (s *Service) BlockedKeywords(ctx context.Context) ([]string, error) {
	p, err := s.repo.Find(ctx, s.id)
	if err != nil {
		return nil, err
	}
	return p.BlockedKeywords, nil
}

// AddBlockedKeyword はキーワードを追加し、更新後の一覧を返す。
func (s *Service) AddBlockedKeyword(ctx context.Context, keyword string) ([]string, error) {
	keyword, err := normalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, s.id, func(p *model.Preference) error {
		if p.HasBlockedKeyword(keyword) {
			return nil
		}
		if len(p.BlockedKeywords) >= model.MaxBlockedKeywords {
			return fmt.Errorf("%w: ブロックキーワードは%d件までです", model.ErrInvalidPreference, model.MaxBlockedKeywords)
		}
		p.AddBlockedKeyword(keyword)
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ブロックキーワードを追加しました", slog.String("keyword", keyword))
	return p.BlockedKeywords, nil
}

// RemoveBlockedKeyword はキーワードを削除し、更新後の一覧を返す。
func (s *Service) RemoveBlockedKeyword(ctx context.Context, keyword string) ([]string, error) {
	keyword, err := normalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, s.id, func(p *model.Preference) error {
		if p.RemoveBlockedKeyword(keyword) {
			p.UpdatedAt = s.now()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ブロックキーワードを削除しました", slog.String("keyword", keyword))
	return p.BlockedKeywords, nil
}

func normalizeTopicID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: 話題IDが空です", model.ErrInvalidPreference)
	}
	if utf8.RuneCountInString(id) > model.MaxTopicIDLength {
		return "", fmt.Errorf("%w: 話題IDは%d文字以内で指定してください", model.ErrInvalidPreference, model.MaxTopicIDLength)
	}
	return id, nil
}

func normalizeKeyword(keyword string) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", fmt.Errorf("%w: キーワードが空です", model.ErrInvalidPreference)
	}
	if utf8.RuneCountInString(keyword) > model.MaxKeywordLength {
		return "", fmt.Errorf("%w: キーワードは%d文字以内で指定してください", model.ErrInvalidPreference, model.MaxKeywordLength)
	}
	return keyword, nil
}
