package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/trendlens/internal/model"
)

// PostgresPreferenceRepo はPostgreSQLを使用した設定リポジトリ。
// 更新はSELECT ... FOR UPDATEで行をロックしたトランザクション内で行う。
type PostgresPreferenceRepo struct {
	db *sql.DB
}

// NewPostgresPreferenceRepo はPostgresPreferenceRepoを生成する。
func NewPostgresPreferenceRepo(db *sql.DB) *PostgresPreferenceRepo {
	return &PostgresPreferenceRepo{db: db}
}

const preferenceColumns = `id, favorite_topic_ids, blocked_keywords, updated_at`

// Find は設定を取得する。行がない場合は空の設定を返す。
func (r *PostgresPreferenceRepo) Find(ctx context.Context, id string) (*model.Preference, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_preferences WHERE id = $1`,
		id,
	)

	p, err := scanPreference(row)
	if err == sql.ErrNoRows {
		return model.NewPreference(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	return p, nil
}

// Update は行ロックを取得してfnを適用し、結果を保存する。
func (r *PostgresPreferenceRepo) Update(ctx context.Context, id string, fn func(p *model.Preference) error) (*model.Preference, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 初回更新でもロック対象の行が存在するようにする
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_preferences (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		id,
	); err != nil {
		return nil, fmt.Errorf("設定の初期化に失敗しました: %w", err)
	}

	p, err := scanPreference(tx.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_preferences WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	favorites, err := encodeStrings(p.FavoriteTopicIDs)
	if err != nil {
		return nil, err
	}
	keywords, err := encodeStrings(p.BlockedKeywords)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_preferences
		 SET favorite_topic_ids = $2, blocked_keywords = $3, updated_at = $4
		 WHERE id = $1`,
		id, favorites, keywords, p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return p, nil
}

func scanPreference(row rowScanner) (*model.Preference, error) {
	p := &model.Preference{}
	var favorites, keywords []byte

	if err := row.Scan(&p.ID, &favorites, &keywords, &p.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.FavoriteTopicIDs, err = decodeStrings(favorites); err != nil {
		return nil, err
	}
	if p.BlockedKeywords, err = decodeStrings(keywords); err != nil {
		return nil, err
	}
	return p, nil
}

// encodeStrings は文字列一覧をJSONB用にエンコードする。nilは空配列として保存する。
func encodeStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("設定のエンコードに失敗しました: %w", err)
	}
	return b, nil
}

func decodeStrings(b []byte) ([]string, error) {
	values := []string{}
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗しました: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

var _ PreferenceRepository = (*PostgresPreferenceRepo)(nil)
