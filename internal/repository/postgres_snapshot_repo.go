package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/trendlens/internal/model"
)

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
// トピック一覧はJSONBカラムに丸ごと格納する。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

const snapshotColumns = `id, platform, fetched_at, valid_until, content_hash,
		        validator, schema_version, topics`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// FindByPlatform は指定プラットフォームのスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresSnapshotRepo) FindByPlatform(ctx context.Context, platform model.Platform) (*model.Snapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+`
		 FROM trend_snapshots WHERE platform = $1`,
		string(platform),
	)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スナップショットの取得に失敗しました: %w", err)
	}
	return snap, nil
}

// Save はスナップショットをUPSERTする。
func (r *PostgresSnapshotRepo) Save(ctx context.Context, snapshot *model.Snapshot) error {
	topics, err := encodeTopics(snapshot.Topics)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO trend_snapshots (platform, id, fetched_at, valid_until, content_hash,
		                              validator, schema_version, topics, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (platform) DO UPDATE SET
		    id = EXCLUDED.id,
		    fetched_at = EXCLUDED.fetched_at,
		    valid_until = EXCLUDED.valid_until,
		    content_hash = EXCLUDED.content_hash,
		    validator = EXCLUDED.validator,
		    schema_version = EXCLUDED.schema_version,
		    topics = EXCLUDED.topics,
		    updated_at = now()`,
		string(snapshot.Platform), snapshot.ID, snapshot.FetchedAt, snapshot.ValidUntil,
		snapshot.ContentHash, nullString(snapshot.Validator), snapshot.SchemaVersion, topics,
	)
	if err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByPlatform は指定プラットフォームのスナップショットを削除する。
func (r *PostgresSnapshotRepo) DeleteByPlatform(ctx context.Context, platform model.Platform) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM trend_snapshots WHERE platform = $1`,
		string(platform),
	)
	if err != nil {
		return fmt.Errorf("スナップショットの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteExpiredBefore はvalid_until < before のスナップショットを削除する。
func (r *PostgresSnapshotRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) ([]model.Platform, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM trend_snapshots WHERE valid_until < $1 RETURNING platform`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("期限切れスナップショットの削除に失敗しました: %w", err)
	}
	defer rows.Close()

	var deleted []model.Platform
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("削除結果の読み取りに失敗しました: %w", err)
		}
		deleted = append(deleted, model.Platform(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("削除結果の走査に失敗しました: %w", err)
	}

	return deleted, nil
}

// List は全スナップショットをプラットフォーム名順に取得する。
func (r *PostgresSnapshotRepo) List(ctx context.Context) ([]*model.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+`
		 FROM trend_snapshots ORDER BY platform ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("スナップショット一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var snaps []*model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("スナップショットの読み取りに失敗しました: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スナップショット一覧の走査に失敗しました: %w", err)
	}

	return snaps, nil
}

func scanSnapshot(row rowScanner) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	var platform string
	var validator sql.NullString
	var topics []byte

	if err := row.Scan(
		&snap.ID, &platform, &snap.FetchedAt, &snap.ValidUntil, &snap.ContentHash,
		&validator, &snap.SchemaVersion, &topics,
	); err != nil {
		return nil, err
	}

	snap.Platform = model.Platform(platform)
	snap.Validator = nullStringValue(validator)

	decoded, err := decodeTopics(topics)
	if err != nil {
		return nil, err
	}
	snap.Topics = decoded

	return snap, nil
}

// encodeTopics はトピック一覧をJSONBカラム用にエンコードする。nilは空配列として保存する。
func encodeTopics(topics []model.Topic) ([]byte, error) {
	if topics == nil {
		topics = []model.Topic{}
	}
	b, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("トピックのエンコードに失敗しました: %w", err)
	}
	return b, nil
}

func decodeTopics(b []byte) ([]model.Topic, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var topics []model.Topic
	if err := json.Unmarshal(b, &topics); err != nil {
		return nil, fmt.Errorf("トピックのデコードに失敗しました: %w", err)
	}
	return topics, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
