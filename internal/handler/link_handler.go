// Package handler はボットゲートウェイ向けREST APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/judgelink/internal/middleware"
	"github.com/hitoshi/judgelink/internal/model"
	"github.com/hitoshi/judgelink/internal/verify"
)

// LinkServiceInterface は連携ハンドラーが必要とするサービスインターフェース。
type LinkServiceInterface interface {
	// StartSession は検証チャレンジを開始する。
	StartSession(ctx context.Context, userID, guildID string, platform model.Platform, username string) (*model.VerificationSession, error)
	// Verify は進行中セッションの検証を試行する。platformが空の場合は全対象。
	Verify(ctx context.Context, userID, guildID string, platform model.Platform) ([]verify.Result, error)
}

// LinkHandler はアカウント連携のHTTPハンドラー。
type LinkHandler struct {
	service LinkServiceInterface
}

// NewLinkHandler はLinkHandlerを生成する。
func NewLinkHandler(service LinkServiceInterface) *LinkHandler {
	return &LinkHandler{service: service}
}

// startLinkRequest は連携開始リクエストのボディ。
type startLinkRequest struct {
	GuildID  string `json:"guild_id"`
	Platform string `json:"platform"`
	Username string `json:"username"`
}

// startLinkResponse は連携開始のAPIレスポンス。
// ボットゲートウェイはこの内容をユーザーへのチャレンジ提示に使う。
type startLinkResponse struct {
	Platform             string    `json:"platform"`
	Username             string    `json:"username"`
	ProblemID            string    `json:"problem_id"`
	ProblemName          string    `json:"problem_name"`
	ProblemURL           string    `json:"problem_url"`
	ExpiresAt            time.Time `json:"expires_at"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds"`
}

// verifyRequest は検証リクエストのボディ。platformは省略可能。
type verifyRequest struct {
	GuildID  string `json:"guild_id"`
	Platform string `json:"platform,omitempty"`
}

// verifyResultResponse は1セッション分の検証結果。
type verifyResultResponse struct {
	Platform             string `json:"platform"`
	Success              bool   `json:"success"`
	Status               string `json:"status"`
	Message              string `json:"message"`
	Rank                 string `json:"rank,omitempty"`
	ProblemName          string `json:"problem_name,omitempty"`
	ProblemURL           string `json:"problem_url,omitempty"`
	TimeRemainingSeconds int    `json:"time_remaining_seconds,omitempty"`
	ErrorCode            string `json:"error_code,omitempty"`
}

// verifyResponse は検証のAPIレスポンス。
type verifyResponse struct {
	Results []verifyResultResponse `json:"results"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// StartLink は検証チャレンジの開始を処理する。
// POST /api/links
func (h *LinkHandler) StartLink(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req startLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.GuildID == "" || req.Username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "guild_id と username は必須です。",
			Category: "validation",
			Action:   "必須フィールドを指定してください。",
		})
		return
	}

	platform, ok := model.ParsePlatform(req.Platform)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(req.Platform))
		return
	}

	session, err := h.service.StartSession(r.Context(), userID, req.GuildID, platform, req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(startLinkResponse{
		Platform:             string(session.Platform),
		Username:             session.Username,
		ProblemID:            session.ProblemID,
		ProblemName:          session.ProblemName,
		ProblemURL:           session.ProblemURL,
		ExpiresAt:            session.ExpiresAt,
		TimeRemainingSeconds: int(session.ExpiresAt.Sub(session.StartedAt).Seconds()),
	})
}

// VerifyLink はチャレンジ提出の検証を処理する。
// POST /api/links/verify
func (h *LinkHandler) VerifyLink(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.GuildID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "guild_id は必須です。",
			Category: "validation",
			Action:   "必須フィールドを指定してください。",
		})
		return
	}

	// platform省略時は全プラットフォームの進行中セッションが対象
	var platform model.Platform
	if req.Platform != "" {
		var ok bool
		platform, ok = model.ParsePlatform(req.Platform)
		if !ok {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(req.Platform))
			return
		}
	}

	results, err := h.service.Verify(r.Context(), userID, req.GuildID, platform)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := verifyResponse{Results: make([]verifyResultResponse, 0, len(results))}
	for _, res := range results {
		item := verifyResultResponse{
			Platform:             string(res.Platform),
			Success:              res.Status == verify.StatusVerified,
			Status:               string(res.Status),
			Message:              res.Message,
			Rank:                 res.Rank,
			ProblemName:          res.ProblemName,
			ProblemURL:           res.ProblemURL,
			TimeRemainingSeconds: int(res.TimeRemaining.Seconds()),
		}
		if res.APIError != nil {
			item.ErrorCode = res.APIError.Code
		}
		resp.Results = append(resp.Results, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- ヘルパー関数 ---

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorized は401の統一レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ボットゲートウェイ経由でアクセスしてください。",
	})
}

// writeInvalidRequest はリクエストボディ解析失敗の統一レスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUsernameNotFound, model.ErrCodeSessionNotFound, model.ErrCodeLinkNotFound:
		return http.StatusNotFound
	case model.ErrCodeBackendUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeDuplicateLink:
		return http.StatusConflict
	case model.ErrCodeSessionExpired:
		return http.StatusGone
	case model.ErrCodeInvalidPlatform:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
