// Package catalog はチャレンジ問題の選択を提供する。
// 一括取得エンドポイントを持つバックエンドは時間制限付きキャッシュで、
// 持たないバックエンドは同梱の固定リストで問題を供給する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hitoshi/judgelink/internal/model"
)

// problemListKey はキャッシュ上の問題リストのキー。
const problemListKey = "codeforces_problems"

// ProblemFetcher はCodeforcesの問題一覧取得のインターフェース。
// judge.CodeforcesClientが実装する。テスト時にモックに差し替え可能。
type ProblemFetcher interface {
	FetchProblems(ctx context.Context) ([]model.Problem, error)
}

// Config はカタログの設定パラメータ。
type Config struct {
	// CacheTTL は問題リストのキャッシュ有効期間（デフォルト: 1時間）。
	CacheTTL time.Duration
	// RatingMin / RatingMax はCodeforces問題の難易度帯。
	RatingMin int
	RatingMax int
}

// DefaultConfig はデフォルトのカタログ設定を返す。
func DefaultConfig() Config {
	return Config{
		CacheTTL:  time.Hour,
		RatingMin: 800,
		RatingMax: 1500,
	}
}

// Catalog はバックエンドごとのチャレンジ問題供給源。
// Codeforcesは難易度帯でフィルタした一覧をキャッシュし、
// 取得失敗時はstaleなコピーがあればそれを供給する。
// CodeChefは固定の厳選リストからネットワークなしで選択する。
type Catalog struct {
	fetcher ProblemFetcher
	cache   *gocache.Cache
	config  Config
	logger  *slog.Logger

	// staleは有効期限に関係なく最後に取得成功したリストを保持する。
	// キャッシュと別に持つのは、go-cacheがTTL超過分を破棄するため。
	staleMu sync.Mutex
	stale   []model.Problem
}

// New はCatalogの新しいインスタンスを生成する。
func New(fetcher ProblemFetcher, config Config, logger *slog.Logger) *Catalog {
	return &Catalog{
		fetcher: fetcher,
		cache:   gocache.New(config.CacheTTL, 2*config.CacheTTL),
		config:  config,
		logger:  logger,
	}
}

// Pick は指定バックエンドのチャレンジ問題を一様ランダムに選択する。
func (c *Catalog) Pick(ctx context.Context, platform model.Platform) (model.Problem, error) {
	switch platform {
	case model.PlatformCodeforces:
		problems, err := c.codeforcesProblems(ctx)
		if err != nil {
			return model.Problem{}, err
		}
		return problems[rand.Intn(len(problems))], nil
	case model.PlatformCodechef:
		return codechefProblems[rand.Intn(len(codechefProblems))], nil
	default:
		return model.Problem{}, fmt.Errorf("unknown platform: %s", platform)
	}
}

// Exists は指定バックエンドに問題参照が存在するかを確認する。
// Codeforcesはキャッシュ済み一覧を再利用する。
func (c *Catalog) Exists(ctx context.Context, platform model.Platform, ref string) (bool, error) {
	var problems []model.Problem
	switch platform {
	case model.PlatformCodeforces:
		var err error
		problems, err = c.codeforcesProblems(ctx)
		if err != nil {
			return false, err
		}
	case model.PlatformCodechef:
		problems = codechefProblems
	default:
		return false, fmt.Errorf("unknown platform: %s", platform)
	}

	for _, p := range problems {
		if strings.EqualFold(p.ID, ref) {
			return true, nil
		}
	}
	return false, nil
}

// codeforcesProblems は難易度帯でフィルタ済みの問題一覧を返す。
// キャッシュが有効ならそれを、無効なら再取得してキャッシュする。
// 再取得に失敗した場合はstaleなコピーがあればそれを供給し、なければ失敗を伝播する。
func (c *Catalog) codeforcesProblems(ctx context.Context) ([]model.Problem, error) {
	if cached, ok := c.cache.Get(problemListKey); ok {
		return cached.([]model.Problem), nil
	}

	all, err := c.fetcher.FetchProblems(ctx)
	if err != nil {
		c.staleMu.Lock()
		stale := c.stale
		c.staleMu.Unlock()

		if len(stale) > 0 {
			c.logger.Warn("問題一覧の再取得に失敗したためstaleなキャッシュを供給します",
				slog.String("error", err.Error()),
				slog.Int("stale_count", len(stale)),
			)
			return stale, nil
		}
		return nil, err
	}

	filtered := make([]model.Problem, 0, len(all))
	for _, p := range all {
		if p.Rating >= c.config.RatingMin && p.Rating <= c.config.RatingMax {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no problems within rating band [%d, %d]", c.config.RatingMin, c.config.RatingMax)
	}

	c.cache.Set(problemListKey, filtered, gocache.DefaultExpiration)

	c.staleMu.Lock()
	c.stale = filtered
	c.staleMu.Unlock()

	c.logger.Info("問題一覧を更新しました",
		slog.Int("total", len(all)),
		slog.Int("filtered", len(filtered)),
	)

	return filtered, nil
}
