package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/judgelink/internal/model"
)

const (
	// cfDefaultAPIBase はCodeforces公開REST APIのベースURL。
	cfDefaultAPIBase = "https://codeforces.com/api"
	// cfProblemURLFormat は問題ページURLのフォーマット（contest, index）。
	cfProblemURLFormat = "https://codeforces.com/problemset/problem/%s/%s"
	// cfCompileErrorVerdict はCodeforcesのコンパイルエラーverdict。正確な番兵文字列。
	cfCompileErrorVerdict = "COMPILATION_ERROR"
)

// CodeforcesClient はCodeforces公開REST APIのクライアント。
// user.info / user.status / problemset.problems を使用する。
type CodeforcesClient struct {
	httpClient *http.Client
	pacer      *Pacer
	logger     *slog.Logger
	apiBase    string // テスト用にエンドポイントを差し替え可能
}

// NewCodeforcesClient はCodeforcesClientの新しいインスタンスを生成する。
func NewCodeforcesClient(httpClient *http.Client, pacer *Pacer, logger *slog.Logger) *CodeforcesClient {
	return &CodeforcesClient{
		httpClient: httpClient,
		pacer:      pacer,
		logger:     logger,
		apiBase:    cfDefaultAPIBase,
	}
}

// cfEnvelope はCodeforces APIの共通レスポンス封筒。
type cfEnvelope struct {
	Status  string          `json:"status"` // "OK" または "FAILED"
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

// cfUser はuser.infoのユーザー情報。
type cfUser struct {
	Handle string `json:"handle"`
	Rank   string `json:"rank"`
	Rating int    `json:"rating"`
}

// cfProblem はAPIレスポンス中の問題情報。
type cfProblem struct {
	ContestID int    `json:"contestId"`
	Index     string `json:"index"`
	Name      string `json:"name"`
	Rating    int    `json:"rating"`
}

// cfSubmission はuser.statusの提出情報。
type cfSubmission struct {
	ID                  int64     `json:"id"`
	CreationTimeSeconds int64     `json:"creationTimeSeconds"`
	Problem             cfProblem `json:"problem"`
	Verdict             string    `json:"verdict"`
}

// cfProblemSet はproblemset.problemsのresult。
type cfProblemSet struct {
	Problems []cfProblem `json:"problems"`
}

// Platform はPlatformCodeforcesを返す。
func (c *CodeforcesClient) Platform() model.Platform {
	return model.PlatformCodeforces
}

// ValidateUser はuser.infoでユーザーの存在を確認する。
func (c *CodeforcesClient) ValidateUser(ctx context.Context, username string) (bool, error) {
	_, err := c.FetchProfile(ctx, username)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FetchProfile はuser.infoでユーザープロフィールを取得する。
// 存在しないハンドルの場合はErrNotFoundを返す。
func (c *CodeforcesClient) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	result, err := c.call(ctx, "user.info", url.Values{"handles": {username}})
	if err != nil {
		return nil, err
	}

	var users []cfUser
	if err := json.Unmarshal(result, &users); err != nil {
		c.logger.Error("user.infoレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, ErrBackendUnavailable
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}

	return &Profile{
		Handle: users[0].Handle,
		Rank:   users[0].Rank,
		Rating: users[0].Rating,
	}, nil
}

// RecentSubmissions はuser.statusで直近count件の提出を新しい順で取得する。
func (c *CodeforcesClient) RecentSubmissions(ctx context.Context, username string, count int) ([]model.Submission, error) {
	result, err := c.call(ctx, "user.status", url.Values{
		"handle": {username},
		"from":   {"1"},
		"count":  {fmt.Sprintf("%d", count)},
	})
	if err != nil {
		return nil, err
	}

	var raw []cfSubmission
	if err := json.Unmarshal(result, &raw); err != nil {
		c.logger.Error("user.statusレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, ErrBackendUnavailable
	}

	subs := make([]model.Submission, 0, len(raw))
	for _, s := range raw {
		subs = append(subs, model.Submission{
			ProblemRef:  fmt.Sprintf("%d%s", s.Problem.ContestID, s.Problem.Index),
			Verdict:     s.Verdict,
			SubmittedAt: time.Unix(s.CreationTimeSeconds, 0),
		})
	}
	return subs, nil
}

// FetchProblems はproblemset.problemsで全問題を取得する。
// 難易度でのフィルタはカタログ側の責務。rating未設定の問題は0を持つ。
func (c *CodeforcesClient) FetchProblems(ctx context.Context) ([]model.Problem, error) {
	result, err := c.call(ctx, "problemset.problems", nil)
	if err != nil {
		return nil, err
	}

	var set cfProblemSet
	if err := json.Unmarshal(result, &set); err != nil {
		c.logger.Error("problemset.problemsレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, ErrBackendUnavailable
	}

	problems := make([]model.Problem, 0, len(set.Problems))
	for _, p := range set.Problems {
		if p.ContestID == 0 || p.Index == "" {
			continue
		}
		ref := fmt.Sprintf("%d%s", p.ContestID, p.Index)
		problems = append(problems, model.Problem{
			ID:     ref,
			Name:   p.Name,
			URL:    c.ProblemURL(ref),
			Rating: p.Rating,
		})
	}
	return problems, nil
}

// ProblemURL は複合参照（例: "1000A"）から問題ページURLを構築する。
func (c *CodeforcesClient) ProblemURL(ref string) string {
	contest, index := splitCFRef(ref)
	return fmt.Sprintf(cfProblemURLFormat, contest, index)
}

// IsCompileError はverdictがコンパイルエラーかを判定する。
// Codeforcesは信頼できるAPIを持つため、正確な番兵文字列で比較する。
func (c *CodeforcesClient) IsCompileError(verdict string) bool {
	return verdict == cfCompileErrorVerdict
}

// call はAPIメソッドを呼び出し、result部分を返す。
// 全リクエストは最小間隔ゲートを通過してから発行される。
func (c *CodeforcesClient) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.apiBase + "/" + method
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "judgelink/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Codeforces APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return nil, ErrBackendUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	// CodeforcesはFAILEDでも本文にJSON封筒を返すため、まず封筒のデコードを試みる。
	var env cfEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error("Codeforces APIが不正なレスポンスを返しました",
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, ErrBackendUnavailable
	}

	if env.Status != "OK" {
		// 例: "handles: User with handle X not found"
		if strings.Contains(strings.ToLower(env.Comment), "not found") {
			return nil, ErrNotFound
		}
		c.logger.Warn("Codeforces APIがFAILEDを返しました",
			slog.String("method", method),
			slog.String("comment", env.Comment),
		)
		return nil, ErrBackendUnavailable
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ErrBackendUnavailable
	}

	return env.Result, nil
}

// splitCFRef は複合参照をcontest識別子とindexに分割する。
// 数字の並びがcontest、残りがindex（例: "1000A" → "1000", "A"）。
func splitCFRef(ref string) (string, string) {
	i := 0
	for i < len(ref) && ref[i] >= '0' && ref[i] <= '9' {
		i++
	}
	return ref[:i], ref[i:]
}

// compile-time interface check
var _ Client = (*CodeforcesClient)(nil)
