package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/judgelink/internal/model"
)

type mockAccountReader struct {
	listByUserFunc func(ctx context.Context, userID, guildID string) ([]*model.LinkedAccount, error)
}

func (m *mockAccountReader) ListByUser(ctx context.Context, userID, guildID string) ([]*model.LinkedAccount, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, guildID)
	}
	return nil, nil
}

type mockAccountDeleter struct {
	deleteFunc func(ctx context.Context, userID, guildID string, platform model.Platform) (int64, error)
}

func (m *mockAccountDeleter) Delete(ctx context.Context, userID, guildID string, platform model.Platform) (int64, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, guildID, platform)
	}
	return 0, nil
}

func TestListLinks_ReturnsAccounts(t *testing.T) {
	linkedAt := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	h := NewAccountHandler(&mockAccountReader{
		listByUserFunc: func(ctx context.Context, userID, guildID string) ([]*model.LinkedAccount, error) {
			return []*model.LinkedAccount{
				{UserID: userID, GuildID: guildID, Platform: model.PlatformCodeforces, Username: "tourist", Rank: "legendary grandmaster", LinkedAt: linkedAt},
				{UserID: userID, GuildID: guildID, Platform: model.PlatformCodechef, Username: "tourist_cc", LinkedAt: linkedAt},
			}, nil
		},
	}, &mockAccountDeleter{})

	w := doJSONRequest(t, h.ListLinks, http.MethodGet, "/api/links?guild_id=guild-1", nil, "user-1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp listLinksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if len(resp.Links) != 2 {
		t.Fatalf("連携件数 = %d, want 2", len(resp.Links))
	}
	if resp.Links[0].Rank != "legendary grandmaster" {
		t.Errorf("rank = %q", resp.Links[0].Rank)
	}
}

func TestListLinks_EmptyListIsOK(t *testing.T) {
	h := NewAccountHandler(&mockAccountReader{}, &mockAccountDeleter{})

	w := doJSONRequest(t, h.ListLinks, http.MethodGet, "/api/links?guild_id=guild-1", nil, "user-1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp listLinksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if resp.Links == nil {
		t.Error("links は空配列であるべき（nullではない）")
	}
}

func TestListLinks_RequiresGuildID(t *testing.T) {
	h := NewAccountHandler(&mockAccountReader{}, &mockAccountDeleter{})

	w := doJSONRequest(t, h.ListLinks, http.MethodGet, "/api/links", nil, "user-1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUnlink_Success(t *testing.T) {
	var gotPlatform model.Platform
	h := NewAccountHandler(&mockAccountReader{}, &mockAccountDeleter{
		deleteFunc: func(ctx context.Context, userID, guildID string, platform model.Platform) (int64, error) {
			gotPlatform = platform
			return 1, nil
		},
	})

	w := doJSONRequest(t, h.Unlink, http.MethodDelete, "/api/links", map[string]string{
		"guild_id": "guild-1",
		"platform": "codechef",
	}, "user-1")

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotPlatform != model.PlatformCodechef {
		t.Errorf("platform = %q, want codechef", gotPlatform)
	}
}

func TestUnlink_NotFound(t *testing.T) {
	h := NewAccountHandler(&mockAccountReader{}, &mockAccountDeleter{})

	w := doJSONRequest(t, h.Unlink, http.MethodDelete, "/api/links", map[string]string{
		"guild_id": "guild-1",
		"platform": "codeforces",
	}, "user-1")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp apiErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != model.ErrCodeLinkNotFound {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeLinkNotFound)
	}
}

func TestUnlink_InvalidPlatform(t *testing.T) {
	h := NewAccountHandler(&mockAccountReader{}, &mockAccountDeleter{})

	w := doJSONRequest(t, h.Unlink, http.MethodDelete, "/api/links", map[string]string{
		"guild_id": "guild-1",
		"platform": "topcoder",
	}, "user-1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
