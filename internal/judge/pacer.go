package judge

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer はバックエンドごとの最小リクエスト間隔ゲート。
// 直近リクエストの時刻をバックエンド単位で1つだけ共有し、
// 並行する呼び出し元はこのゲートの後ろで直列化される。
// アダプタ生成時に1回構築し、参照で注入する。
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer は最小間隔spacingのPacerを生成する。
// spacingが0以下の場合は待機しないPacerを返す。
func NewPacer(spacing time.Duration) *Pacer {
	if spacing <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(spacing), 1)}
}

// Wait は前回のリクエストからspacing以上経過するまでブロックする。
// コンテキストがキャンセルされた場合はそのエラーを返す。
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
