package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/judgelink/internal/model"
)

// PostgresGuildConfigRepo はPostgreSQLを使用したギルド設定リポジトリ。
type PostgresGuildConfigRepo struct {
	db *sql.DB
}

// NewPostgresGuildConfigRepo はPostgresGuildConfigRepoを生成する。
func NewPostgresGuildConfigRepo(db *sql.DB) *PostgresGuildConfigRepo {
	return &PostgresGuildConfigRepo{db: db}
}

// Find は指定ギルドの設定を取得する。未設定の場合はnilを返す。
func (r *PostgresGuildConfigRepo) Find(ctx context.Context, guildID string) (*model.GuildConfig, error) {
	cfg := &model.GuildConfig{}
	var verifiedRoleID sql.NullString
	var rankRoleMapJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT guild_id, verified_role_id, rank_role_map
		 FROM guild_configs
		 WHERE guild_id = $1`,
		guildID,
	).Scan(&cfg.GuildID, &verifiedRoleID, &rankRoleMapJSON)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find guild config: %w", err)
	}

	cfg.VerifiedRoleID = verifiedRoleID.String
	cfg.RankRoleMap = make(map[string]string)
	if len(rankRoleMapJSON) > 0 {
		if err := json.Unmarshal(rankRoleMapJSON, &cfg.RankRoleMap); err != nil {
			return nil, fmt.Errorf("failed to parse rank role map: %w", err)
		}
	}

	return cfg, nil
}

// compile-time interface check
var _ GuildConfigRepository = (*PostgresGuildConfigRepo)(nil)
