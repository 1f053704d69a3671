package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/judgelink/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用した連携済みアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// Upsert は連携済みアカウントを保存する。同一主キーは上書きする。
// (guild_id, platform, username) の一意制約に違反した場合はErrDuplicateLinkを返す。
func (r *PostgresAccountRepo) Upsert(ctx context.Context, account *model.LinkedAccount) error {
	var rank sql.NullString
	if account.Rank != "" {
		rank = sql.NullString{String: account.Rank, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO linked_accounts (user_id, guild_id, platform, username, rank, linked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, guild_id, platform)
		 DO UPDATE SET username = EXCLUDED.username, rank = EXCLUDED.rank, linked_at = EXCLUDED.linked_at`,
		account.UserID, account.GuildID, account.Platform, account.Username, rank, account.LinkedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateLink
		}
		return fmt.Errorf("failed to upsert linked account: %w", err)
	}
	return nil
}

// FindByHandle はギルド内で (platform, username) を連携しているアカウントを返す。
// ハンドル名は大文字小文字を区別せずに照合する。
func (r *PostgresAccountRepo) FindByHandle(ctx context.Context, guildID string, platform model.Platform, username string) (*model.LinkedAccount, error) {
	account := &model.LinkedAccount{}
	var rank sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, guild_id, platform, username, rank, linked_at
		 FROM linked_accounts
		 WHERE guild_id = $1 AND platform = $2 AND lower(username) = lower($3)`,
		guildID, platform, username,
	).Scan(&account.UserID, &account.GuildID, &account.Platform, &account.Username, &rank, &account.LinkedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}

	account.Rank = rank.String
	return account, nil
}

// ListByUser は指定ユーザーのギルド内の全連携を返す。
func (r *PostgresAccountRepo) ListByUser(ctx context.Context, userID, guildID string) ([]*model.LinkedAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, guild_id, platform, username, rank, linked_at
		 FROM linked_accounts
		 WHERE user_id = $1 AND guild_id = $2
		 ORDER BY platform`,
		userID, guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.LinkedAccount
	for rows.Next() {
		account := &model.LinkedAccount{}
		var rank sql.NullString
		if err := rows.Scan(&account.UserID, &account.GuildID, &account.Platform, &account.Username, &rank, &account.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan linked account: %w", err)
		}
		account.Rank = rank.String
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate linked accounts: %w", err)
	}

	return accounts, nil
}

// Delete は指定キーの連携を削除する。削除件数を返す。
func (r *PostgresAccountRepo) Delete(ctx context.Context, userID, guildID string, platform model.Platform) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM linked_accounts WHERE user_id = $1 AND guild_id = $2 AND platform = $3`,
		userID, guildID, platform,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete linked account: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
