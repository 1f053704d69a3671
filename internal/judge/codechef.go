package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/judgelink/internal/model"
)

const (
	// ccDefaultBase はCodeChefサイトのベースURL。安定した公開APIは存在しない。
	ccDefaultBase = "https://www.codechef.com"
	// ccProblemURLFormat は問題ページURLのフォーマット。
	ccProblemURLFormat = "https://www.codechef.com/problems/%s"
)

// ccCompileErrorPhrases はスクレイピングで観測されるコンパイルエラー表記。
// 大文字小文字を区別しない部分一致で照合する。
var ccCompileErrorPhrases = []string{
	"compilation error",
	"compile error",
	"(cte)",
}

// CodeChefスクレイピング用の正規表現。HTMLスキーマのドリフトに備えて
// 個々のパターンは意図的に緩くしてある。どれかが合わなくなった場合、
// 該当行は静かにスキップされ、結果は空に退化する。
var (
	ccRatingRe  = regexp.MustCompile(`class="rating-number"[^>]*>\s*(\d+)`)
	ccStarsRe   = regexp.MustCompile(`class="rating"[^>]*>\s*(\d)\s*★`)
	ccRowRe     = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	ccProblemRe = regexp.MustCompile(`/problems/([A-Za-z0-9_]+)`)
	ccVerdictRe = regexp.MustCompile(`<span[^>]*title="([^"]*)"`)
	ccTimeRe    = regexp.MustCompile(`(\d{1,2}:\d{2}\s*[AP]M\s*\d{2}/\d{2}/\d{2})`)
	ccAgoRe     = regexp.MustCompile(`(\d+)\s*(sec|min|hour|day)s?\s*ago`)
)

// ccTimeLayout は絶対時刻表記のレイアウト（例: "03:04 PM 02/01/06"）。
const ccTimeLayout = "03:04 PM 02/01/06"

// CodeChefClient はCodeChefのスクレイピングベースのクライアント。
//
// CodeChefは安定した公開APIを提供していないため、提出履歴の照合は
// 本質的にベストエフォートである。HTMLスキーマが変化した場合、
// このクライアントはエラーではなく空の結果に退化する。
type CodeChefClient struct {
	httpClient *http.Client
	pacer      *Pacer
	logger     *slog.Logger
	base       string // テスト用にエンドポイントを差し替え可能
	now        func() time.Time
}

// NewCodeChefClient はCodeChefClientの新しいインスタンスを生成する。
// httpClientはリダイレクトを追わないこと（存在しないユーザーはリダイレクトで判別する）。
func NewCodeChefClient(httpClient *http.Client, pacer *Pacer, logger *slog.Logger) *CodeChefClient {
	return &CodeChefClient{
		httpClient: httpClient,
		pacer:      pacer,
		logger:     logger,
		base:       ccDefaultBase,
		now:        time.Now,
	}
}

// NewCodeChefHTTPClient はCodeChefクライアント用のhttp.Clientを生成する。
// 存在しないユーザーページはリダイレクトされるため、リダイレクトを追わない。
func NewCodeChefHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Platform はPlatformCodechefを返す。
func (c *CodeChefClient) Platform() model.Platform {
	return model.PlatformCodechef
}

// ValidateUser はユーザーページの取得でユーザーの存在を確認する。
// 存在しないユーザーはリダイレクトまたは404で判別する。
func (c *CodeChefClient) ValidateUser(ctx context.Context, username string) (bool, error) {
	_, err := c.FetchProfile(ctx, username)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FetchProfile はユーザーページからプロフィールを取得する。
// レーティングとスター帯はベストエフォートで抽出し、取れない場合は空のまま返す。
func (c *CodeChefClient) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	body, status, err := c.get(ctx, c.base+"/users/"+username)
	if err != nil {
		return nil, err
	}

	// 存在しないユーザーはトップページへのリダイレクト（3xx）または404になる
	if status >= 300 && status < 400 || status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		return nil, ErrBackendUnavailable
	}

	profile := &Profile{Handle: username}
	if m := ccRatingRe.FindSubmatch(body); m != nil {
		if rating, err := strconv.Atoi(string(m[1])); err == nil {
			profile.Rating = rating
		}
	}
	if m := ccStarsRe.FindSubmatch(body); m != nil {
		profile.Rank = string(m[1]) + "★"
	}

	return profile, nil
}

// RecentSubmissions は最近の活動ページから提出を抽出する。
// パースできない行はスキップし、全体がパースできない場合は空の結果を返す。
// これはCodeChefがスキーマの安定性を保証しないための意図的な退化であり、
// エラーとしては扱わない。
func (c *CodeChefClient) RecentSubmissions(ctx context.Context, username string, count int) ([]model.Submission, error) {
	body, status, err := c.get(ctx, c.base+"/recent/user?user_handle="+username)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, ErrBackendUnavailable
	}

	// レスポンスは {"content": "<table>...</table>", ...} 形式のJSON
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("CodeChef最近の活動レスポンスのパースに失敗しました（空の結果に退化）",
			slog.String("username", username),
		)
		return nil, nil
	}

	var subs []model.Submission
	for _, row := range ccRowRe.FindAllStringSubmatch(payload.Content, -1) {
		sub, ok := c.parseRow(row[1])
		if !ok {
			continue
		}
		subs = append(subs, sub)
		if len(subs) >= count {
			break
		}
	}
	return subs, nil
}

// parseRow は提出テーブルの1行から提出を抽出する。
// 問題コード・verdict・時刻のいずれかが取れない行は不採用とする。
// 時刻が読めない行を通すと開始時刻フロアの判定が狂うため、欠落は常にスキップ。
func (c *CodeChefClient) parseRow(row string) (model.Submission, bool) {
	pm := ccProblemRe.FindStringSubmatch(row)
	if pm == nil {
		return model.Submission{}, false
	}

	vm := ccVerdictRe.FindStringSubmatch(row)
	if vm == nil {
		return model.Submission{}, false
	}

	ts, ok := c.parseTime(row)
	if !ok {
		return model.Submission{}, false
	}

	return model.Submission{
		ProblemRef:  pm[1],
		Verdict:     vm[1],
		SubmittedAt: ts,
	}, true
}

// parseTime は行中の時刻表記を解析する。絶対表記と相対表記の両方に対応する。
func (c *CodeChefClient) parseTime(row string) (time.Time, bool) {
	if m := ccTimeRe.FindStringSubmatch(row); m != nil {
		if ts, err := time.Parse(ccTimeLayout, normalizeSpaces(m[1])); err == nil {
			return ts, true
		}
	}

	if m := ccAgoRe.FindStringSubmatch(row); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		var unit time.Duration
		switch m[2] {
		case "sec":
			unit = time.Second
		case "min":
			unit = time.Minute
		case "hour":
			unit = time.Hour
		case "day":
			unit = 24 * time.Hour
		}
		return c.now().Add(-time.Duration(n) * unit), true
	}

	return time.Time{}, false
}

// ProblemURL は問題コードから問題ページURLを構築する。
func (c *CodeChefClient) ProblemURL(ref string) string {
	return fmt.Sprintf(ccProblemURLFormat, ref)
}

// IsCompileError はverdictがコンパイルエラー表記かを判定する。
// スクレイピングベースのため、既知の表記揺れに対して
// 大文字小文字を区別しない部分一致で照合する。
func (c *CodeChefClient) IsCompileError(verdict string) bool {
	v := strings.ToLower(verdict)
	for _, phrase := range ccCompileErrorPhrases {
		if strings.Contains(v, phrase) {
			return true
		}
	}
	return false
}

// get はURLを取得し、本文とステータスコードを返す。
// 全リクエストは最小間隔ゲートを通過してから発行される。
func (c *CodeChefClient) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "judgelink/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("CodeChefの呼び出しに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, 0, ErrBackendUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, ErrBackendUnavailable
	}

	return body, resp.StatusCode, nil
}

// normalizeSpaces は連続する空白を1つにまとめる。
func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// compile-time interface check
var _ Client = (*CodeChefClient)(nil)
