package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/judgelink/internal/middleware"
	"github.com/hitoshi/judgelink/internal/model"
)

// AccountReader は連携済みアカウントの参照インターフェース。
// repository.AccountRepositoryの部分集合として定義する。
type AccountReader interface {
	ListByUser(ctx context.Context, userID, guildID string) ([]*model.LinkedAccount, error)
}

// AccountDeleter は連携解除のインターフェース。
type AccountDeleter interface {
	Delete(ctx context.Context, userID, guildID string, platform model.Platform) (int64, error)
}

// AccountHandler は連携済みアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	reader  AccountReader
	deleter AccountDeleter
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(reader AccountReader, deleter AccountDeleter) *AccountHandler {
	return &AccountHandler{reader: reader, deleter: deleter}
}

// linkedAccountResponse は連携済みアカウントのAPIレスポンス。
type linkedAccountResponse struct {
	Platform string    `json:"platform"`
	Username string    `json:"username"`
	Rank     string    `json:"rank,omitempty"`
	LinkedAt time.Time `json:"linked_at"`
}

// listLinksResponse は連携一覧のAPIレスポンス。
type listLinksResponse struct {
	Links []linkedAccountResponse `json:"links"`
}

// unlinkRequest は連携解除リクエストのボディ。
type unlinkRequest struct {
	GuildID  string `json:"guild_id"`
	Platform string `json:"platform"`
}

// ListLinks はユーザーの連携済みアカウント一覧を返す。
// GET /api/links?guild_id=...
func (h *AccountHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	guildID := r.URL.Query().Get("guild_id")
	if guildID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "guild_id クエリパラメータは必須です。",
			Category: "validation",
			Action:   "guild_id を指定してください。",
		})
		return
	}

	accounts, err := h.reader.ListByUser(r.Context(), userID, guildID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listLinksResponse{Links: make([]linkedAccountResponse, 0, len(accounts))}
	for _, account := range accounts {
		resp.Links = append(resp.Links, linkedAccountResponse{
			Platform: string(account.Platform),
			Username: account.Username,
			Rank:     account.Rank,
			LinkedAt: account.LinkedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Unlink は連携を解除する。
// DELETE /api/links
func (h *AccountHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req unlinkRequest
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

	platform, ok := model.ParsePlatform(req.Platform)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlatformError(req.Platform))
		return
	}

	deleted, err := h.deleter.Delete(r.Context(), userID, req.GuildID, platform)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if deleted == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewLinkNotFoundError(platform))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
