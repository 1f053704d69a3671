// Package model はドメインモデルを定義する。
package model

import "time"

// Platform は外部ジャッジの種別を表す。
type Platform string

const (
	// PlatformCodeforces はCodeforcesジャッジ。
	PlatformCodeforces Platform = "codeforces"
	// PlatformCodechef はCodeChefジャッジ。
	PlatformCodechef Platform = "codechef"
)

// ParsePlatform は文字列からPlatformを解析する。
// サポート外の文字列の場合はfalseを返す。
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformCodeforces, PlatformCodechef:
		return Platform(s), true
	default:
		return "", false
	}
}

// VerificationSession は進行中のアカウント連携チャレンジを表す。
// (user_id, guild_id, platform) ごとに最大1件のみ存在する。
// 状態遷移はin-placeの更新を行わず、削除と再作成のみで表現する。
type VerificationSession struct {
	ID          string
	UserID      string
	GuildID     string
	Platform    Platform
	Username    string // ジャッジ側の正規形ハンドル
	ProblemID   string // ジャッジ固有の問題参照（CF: "1000A"、CC: 問題コード）
	ProblemURL  string
	ProblemName string
	StartedAt   time.Time // 提出有効性の下限時刻
	ExpiresAt   time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *VerificationSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Remaining は指定時刻からの残り時間を返す。期限切れの場合は0を返す。
func (s *VerificationSession) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
