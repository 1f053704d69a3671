// Package verify は検証セッションのオーケストレーションと提出の照合を提供する。
package verify

import (
	"strings"
	"time"

	"github.com/hitoshi/judgelink/internal/model"
)

// MatchOutcome は提出照合の結果分類。
type MatchOutcome int

const (
	// MatchNotYet は適格な提出が観測されていないことを表す。
	MatchNotYet MatchOutcome = iota
	// MatchMismatch は対象問題への提出はあるがverdictが異なることを表す。
	MatchMismatch
	// MatchVerified は適格な提出が観測されたことを表す。
	MatchVerified
)

// MatchResult は照合結果。MismatchのときVerdictに該当提出のverdictが入る。
type MatchResult struct {
	Outcome MatchOutcome
	Verdict string
}

// Match は提出列からチャレンジを満たす提出を探す。
// 適格な提出の条件:
//
//	(a) 問題参照がセッションの問題と一致する（index部は大文字小文字を区別しない）
//	(b) verdictがコンパイルエラーを表す（判定はアダプタのisCompileErrorに委譲）
//	(c) 提出時刻がセッション開始時刻以降である
//
// 条件(c)は厳密な下限であり、チャレンジ発行前の偶発的なCEの再利用を防ぐ。
// 適格な提出があればVerified、なければ (a)+(c) を満たしverdictだけ異なる
// 提出があればMismatch（最初に観測したverdictを報告）、どちらもなければNotYet。
func Match(problemRef string, startedAt time.Time, subs []model.Submission, isCompileError func(string) bool) MatchResult {
	mismatch := ""
	for _, sub := range subs {
		if !strings.EqualFold(sub.ProblemRef, problemRef) {
			continue
		}
		if sub.SubmittedAt.Before(startedAt) {
			continue
		}
		if isCompileError(sub.Verdict) {
			return MatchResult{Outcome: MatchVerified, Verdict: sub.Verdict}
		}
		if mismatch == "" {
			mismatch = sub.Verdict
		}
	}

	if mismatch != "" {
		return MatchResult{Outcome: MatchMismatch, Verdict: mismatch}
	}
	return MatchResult{Outcome: MatchNotYet}
}
