package catalog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/judgelink/internal/model"
)

// mockFetcher はProblemFetcherのモック。
type mockFetcher struct {
	fetchFunc func(ctx context.Context) ([]model.Problem, error)
	calls     int
}

func (m *mockFetcher) FetchProblems(ctx context.Context) ([]model.Problem, error) {
	m.calls++
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx)
	}
	return nil, nil
}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

func testProblems() []model.Problem {
	return []model.Problem{
		{ID: "1000A", Name: "Theatre Square", URL: "https://codeforces.com/problemset/problem/1000/A", Rating: 1000},
		{ID: "1100B", Name: "Easy One", URL: "https://codeforces.com/problemset/problem/1100/B", Rating: 800},
		{ID: "1200C", Name: "Too Hard", URL: "https://codeforces.com/problemset/problem/1200/C", Rating: 2400},
		{ID: "1300D", Name: "Unrated", URL: "https://codeforces.com/problemset/problem/1300/D", Rating: 0},
	}
}

func TestCatalog_Pick_Codeforces_FiltersRatingBand(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) ([]model.Problem, error) {
			return testProblems(), nil
		},
	}
	c := New(fetcher, DefaultConfig(), newTestLogger())

	// 帯域 [800,1500] に入るのは 1000A と 1100B のみ
	for i := 0; i < 20; i++ {
		p, err := c.Pick(context.Background(), model.PlatformCodeforces)
		if err != nil {
			t.Fatalf("Pick がエラーを返した: %v", err)
		}
		if p.ID != "1000A" && p.ID != "1100B" {
			t.Errorf("難易度帯の外の問題が選択された: %s (rating=%d)", p.ID, p.Rating)
		}
	}
}

func TestCatalog_Pick_Codeforces_UsesCache(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) ([]model.Problem, error) {
			return testProblems(), nil
		},
	}
	c := New(fetcher, DefaultConfig(), newTestLogger())

	for i := 0; i < 5; i++ {
		if _, err := c.Pick(context.Background(), model.PlatformCodeforces); err != nil {
			t.Fatalf("Pick がエラーを返した: %v", err)
		}
	}

	if fetcher.calls != 1 {
		t.Errorf("フェッチ回数 = %d, want 1 (キャッシュが効いていない)", fetcher.calls)
	}
}

func TestCatalog_Pick_Codeforces_ServesStaleOnFailure(t *testing.T) {
	failing := false
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) ([]model.Problem, error) {
			if failing {
				return nil, errors.New("down")
			}
			return testProblems(), nil
		},
	}
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Millisecond
	c := New(fetcher, cfg, newTestLogger())

	// 1回目: 取得成功、staleコピーが保持される
	if _, err := c.Pick(context.Background(), model.PlatformCodeforces); err != nil {
		t.Fatalf("1回目のPickがエラーを返した: %v", err)
	}

	// キャッシュを失効させてから取得を失敗させる
	time.Sleep(5 * time.Millisecond)
	failing = true

	p, err := c.Pick(context.Background(), model.PlatformCodeforces)
	if err != nil {
		t.Fatalf("staleキャッシュがあるのにPickが失敗した: %v", err)
	}
	if p.ID != "1000A" && p.ID != "1100B" {
		t.Errorf("staleキャッシュ外の問題が選択された: %s", p.ID)
	}
}

func TestCatalog_Pick_Codeforces_NoStale_PropagatesFailure(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) ([]model.Problem, error) {
			return nil, errors.New("down")
		},
	}
	c := New(fetcher, DefaultConfig(), newTestLogger())

	if _, err := c.Pick(context.Background(), model.PlatformCodeforces); err == nil {
		t.Fatal("staleキャッシュなしの取得失敗でエラーが返らなかった")
	}
}

func TestCatalog_Pick_Codechef_NoNetworkCall(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) ([]model.Problem, error) {
			t.Error("CodeChefのPickでフェッチが呼ばれた")
			return nil, nil
		},
	}
	c := New(fetcher, DefaultConfig(), newTestLogger())

	p, err := c.Pick(context.Background(), model.PlatformCodechef)
	if err != nil {
		t.Fatalf("Pick がエラーを返した: %v", err)
	}
	if p.ID == "" || p.URL == "" {
		t.Errorf("厳選リストの問題が不完全: %+v", p)
	}
	if fetcher.calls != 0 {
		t.Errorf("フェッチ回数 = %d, want 0", fetcher.calls)
	}
}

func TestCatalog_Exists(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) ([]model.Problem, error) {
			return testProblems(), nil
		},
	}
	c := New(fetcher, DefaultConfig(), newTestLogger())

	ok, err := c.Exists(context.Background(), model.PlatformCodeforces, "1000a")
	if err != nil {
		t.Fatalf("Exists がエラーを返した: %v", err)
	}
	if !ok {
		t.Error("大文字小文字違いの既存問題がExistsでfalseになった")
	}

	ok, err = c.Exists(context.Background(), model.PlatformCodeforces, "9999Z")
	if err != nil {
		t.Fatalf("Exists がエラーを返した: %v", err)
	}
	if ok {
		t.Error("存在しない問題がExistsでtrueになった")
	}

	ok, err = c.Exists(context.Background(), model.PlatformCodechef, "TEST")
	if err != nil {
		t.Fatalf("Exists がエラーを返した: %v", err)
	}
	if !ok {
		t.Error("厳選リストの問題がExistsでfalseになった")
	}
}

func TestCatalog_Pick_UnknownPlatform_ReturnsError(t *testing.T) {
	c := New(&mockFetcher{}, DefaultConfig(), newTestLogger())

	if _, err := c.Pick(context.Background(), model.Platform("atcoder")); err == nil {
		t.Fatal("未知のプラットフォームでエラーが返らなかった")
	}
}
