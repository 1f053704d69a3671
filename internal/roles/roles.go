// Package roles はロール付与コラボレータへの呼び出しを提供する。
// 検証完了後に呼び出される外部の副作用であり、失敗はログに記録されるのみで
// 検証結果には影響しない。
package roles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/judgelink/internal/model"
)

// AssignRequest はロール付与依頼のパラメータ。
// ロールIDはギルド設定から解決済みのものを渡す。空のIDは付与対象外を意味する。
type AssignRequest struct {
	UserID         string         `json:"user_id"`
	GuildID        string         `json:"guild_id"`
	Platform       model.Platform `json:"platform"`
	Rank           string         `json:"rank"`
	VerifiedRoleID string         `json:"verified_role_id"`
	RankRoleID     string         `json:"rank_role_id"`
}

// AssignResult はロール付与の結果。
type AssignResult struct {
	VerifiedRoleAssigned bool `json:"verified_role_assigned"`
	RankRoleAssigned     bool `json:"rank_role_assigned"`
}

// Assigner はロール付与コラボレータのインターフェース。
type Assigner interface {
	AssignRoles(ctx context.Context, req AssignRequest) (AssignResult, error)
}

// WebhookAssigner はボットゲートウェイのWebhookに付与依頼をPOSTする実装。
type WebhookAssigner struct {
	httpClient *http.Client
	logger     *slog.Logger
	url        string
}

// NewWebhookAssigner はWebhookAssignerを生成する。
func NewWebhookAssigner(httpClient *http.Client, url string, logger *slog.Logger) *WebhookAssigner {
	return &WebhookAssigner{
		httpClient: httpClient,
		logger:     logger,
		url:        url,
	}
}

// AssignRoles は付与依頼をWebhookにPOSTし、付与結果を返す。
func (a *WebhookAssigner) AssignRoles(ctx context.Context, req AssignRequest) (AssignResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AssignResult{}, fmt.Errorf("付与依頼のエンコードに失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return AssignResult{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return AssignResult{}, fmt.Errorf("ロール付与Webhookの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return AssignResult{}, fmt.Errorf("ロール付与Webhookがステータス %d を返しました", resp.StatusCode)
	}

	var result AssignResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return AssignResult{}, fmt.Errorf("付与結果のパースに失敗しました: %w", err)
	}
	return result, nil
}

// NopAssigner はWebhook未設定時に使用する何もしない実装。
type NopAssigner struct {
	logger *slog.Logger
}

// NewNopAssigner はNopAssignerを生成する。
func NewNopAssigner(logger *slog.Logger) *NopAssigner {
	return &NopAssigner{logger: logger}
}

// AssignRoles は何も付与せずに空の結果を返す。
func (a *NopAssigner) AssignRoles(ctx context.Context, req AssignRequest) (AssignResult, error) {
	a.logger.Debug("ロール付与Webhookが未設定のため付与をスキップします",
		slog.String("user_id", req.UserID),
		slog.String("guild_id", req.GuildID),
	)
	return AssignResult{}, nil
}

// compile-time interface checks
var (
	_ Assigner = (*WebhookAssigner)(nil)
	_ Assigner = (*NopAssigner)(nil)
)
