package model

import "time"

// Problem はチャレンジ対象の問題を表す。
type Problem struct {
	ID     string // ジャッジ固有の問題参照（CF: "1000A"、CC: 問題コード）
	Name   string
	URL    string
	Rating int // CFのみ。難易度スコア。CCでは0。
}

// Submission はジャッジから観測した提出を表す。読み取り専用。
// Verdictはバックエンド固有の生文字列をそのまま保持する。
type Submission struct {
	ProblemRef  string
	Verdict     string
	SubmittedAt time.Time
}
