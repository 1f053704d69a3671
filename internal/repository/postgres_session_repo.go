package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/judgelink/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した検証セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Upsert はセッションを保存する。同一キーの既存セッションは削除してから作成する。
// 2つの文をトランザクションで括り、上書き途中の観測を防ぐ。
func (r *PostgresSessionRepo) Upsert(ctx context.Context, session *model.VerificationSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM verification_sessions
		 WHERE user_id = $1 AND guild_id = $2 AND platform = $3`,
		session.UserID, session.GuildID, session.Platform,
	)
	if err != nil {
		return fmt.Errorf("failed to delete prior session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO verification_sessions
		 (id, user_id, guild_id, platform, username, problem_id, problem_url, problem_name, started_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID, session.UserID, session.GuildID, session.Platform, session.Username,
		session.ProblemID, session.ProblemURL, session.ProblemName, session.StartedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session upsert: %w", err)
	}
	return nil
}

// ListByUser は指定ユーザーのギルド内セッションを取得する。
func (r *PostgresSessionRepo) ListByUser(ctx context.Context, userID, guildID string, platform model.Platform) ([]*model.VerificationSession, error) {
	query := `SELECT id, user_id, guild_id, platform, username, problem_id, problem_url, problem_name, started_at, expires_at
	          FROM verification_sessions
	          WHERE user_id = $1 AND guild_id = $2`
	args := []interface{}{userID, guildID}
	if platform != "" {
		query += ` AND platform = $3`
		args = append(args, platform)
	}
	query += ` ORDER BY platform`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.VerificationSession
	for rows.Next() {
		s := &model.VerificationSession{}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.GuildID, &s.Platform, &s.Username,
			&s.ProblemID, &s.ProblemURL, &s.ProblemName, &s.StartedAt, &s.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れの全セッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_sessions WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
