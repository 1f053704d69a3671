// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/judgelink/internal/model"
)

// ErrDuplicateLink は (guild_id, platform, username) の一意制約違反を表す。
// DB側のUNIQUE制約が最終防壁であり、サービス層の事前チェックはベストエフォート。
var ErrDuplicateLink = errors.New("linked account already exists for this handle in the guild")

// SessionRepository は検証セッションの永続化インターフェース。
// セッションは更新されない。遷移は削除と再作成のみで表現する。
type SessionRepository interface {
	// Upsert はセッションを保存する。同一 (userID, guildID, platform) の
	// 既存セッションがある場合は削除してから作成する（上書き連携）。
	Upsert(ctx context.Context, session *model.VerificationSession) error

	// ListByUser は指定ユーザーのギルド内セッションを取得する。
	// platformが空でない場合はそのプラットフォームのみに絞り込む。
	ListByUser(ctx context.Context, userID, guildID string, platform model.Platform) ([]*model.VerificationSession, error)

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れの全セッションを削除し、削除件数を返す。
	// 定期スイープから呼び出される。冪等。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AccountRepository は連携済みアカウントの永続化インターフェース。
type AccountRepository interface {
	// Upsert は連携済みアカウントを保存する。同一 (userID, guildID, platform) の
	// 既存連携は上書きされる（再検証）。ギルド内で別ユーザーが同じ
	// (platform, username) を連携済みの場合はErrDuplicateLinkを返す。
	Upsert(ctx context.Context, account *model.LinkedAccount) error

	// FindByHandle はギルド内で (platform, username) を連携しているアカウントを返す。
	// 見つからない場合はnilを返す。
	FindByHandle(ctx context.Context, guildID string, platform model.Platform, username string) (*model.LinkedAccount, error)

	// ListByUser は指定ユーザーのギルド内の全連携を返す。
	ListByUser(ctx context.Context, userID, guildID string) ([]*model.LinkedAccount, error)

	// Delete は指定キーの連携を削除する。削除件数を返す。
	Delete(ctx context.Context, userID, guildID string, platform model.Platform) (int64, error)
}

// GuildConfigRepository はギルド設定の読み取りインターフェース。
// 書き込みは管理コマンド側の責務であり、このコアでは読み取りのみ行う。
type GuildConfigRepository interface {
	// Find は指定ギルドの設定を取得する。未設定の場合はnilを返す。
	Find(ctx context.Context, guildID string) (*model.GuildConfig, error)
}
