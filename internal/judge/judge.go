// Package judge は外部ジャッジ（Codeforces/CodeChef）へのアダプタを提供する。
// 異種のジャッジAPIを単一のケーパビリティインターフェースに正規化し、
// バックエンドごとの最小リクエスト間隔を強制する。
package judge

import (
	"context"
	"errors"

	"github.com/hitoshi/judgelink/internal/model"
)

var (
	// ErrNotFound はジャッジが明示的に「ユーザーが存在しない」と
	// 応答したことを表す。リトライしても解消しない。
	ErrNotFound = errors.New("judge reports no such user")

	// ErrBackendUnavailable はネットワーク障害・タイムアウト・非2xx応答を表す。
	// 呼び出し元の判断でリトライ可能。
	ErrBackendUnavailable = errors.New("judge backend unavailable")
)

// Profile はジャッジ上のユーザープロフィールを表す。
type Profile struct {
	Handle string // バックエンド正規形のハンドル
	Rank   string // プラットフォーム固有のランク表記。取得不能の場合は空。
	Rating int
}

// Client はジャッジバックエンドごとのアダプタ契約。
// オーケストレータとマッチャはバックエンド識別で分岐せず、
// このインターフェースのみを通じてジャッジと対話する。
type Client interface {
	// Platform はこのアダプタが担当するジャッジ種別を返す。
	Platform() model.Platform

	// ValidateUser はジャッジ上にユーザーが存在するかを確認する。
	// 存在しない場合は (false, nil) を返す。通信失敗はErrBackendUnavailable。
	ValidateUser(ctx context.Context, username string) (bool, error)

	// FetchProfile はユーザープロフィールを取得する。
	// 存在しない場合はErrNotFoundを返す。
	FetchProfile(ctx context.Context, username string) (*Profile, error)

	// RecentSubmissions は直近の提出を新しい順で返す。ベストエフォート:
	// 信頼できるAPIを持たないバックエンドは部分的または空の結果を
	// 返すことがあり、それはエラーではない。
	RecentSubmissions(ctx context.Context, username string, count int) ([]model.Submission, error)

	// ProblemURL は問題参照からユーザーに提示するURLを構築する。
	ProblemURL(ref string) string

	// IsCompileError はバックエンド固有のverdict文字列が
	// コンパイルエラーを表すかを判定する。
	IsCompileError(verdict string) bool
}
