package model

import "time"

// LinkedAccount は検証済みのジャッジアカウント連携を表す。
// (user_id, guild_id, platform) ごとに1件。同一ギルド内では
// (platform, username) の組を複数ユーザーが連携することはできない。
type LinkedAccount struct {
	UserID   string
	GuildID  string
	Platform Platform
	Username string
	Rank     string // プラットフォーム固有のランク表記。取得不能の場合は空。
	LinkedAt time.Time
}

// GuildConfig はギルドごとのロール付与設定を表す。
// 管理コマンド側が書き込み、検証完了時に読み取られる。
type GuildConfig struct {
	GuildID        string
	VerifiedRoleID string            // 未設定の場合は空
	RankRoleMap    map[string]string // ランク表記 → ロールID
}
