package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestPostgresAccountRepo_ImplementsInterface(t *testing.T) {
	var _ AccountRepository = (*PostgresAccountRepo)(nil)
}

func TestPostgresGuildConfigRepo_ImplementsInterface(t *testing.T) {
	var _ GuildConfigRepository = (*PostgresGuildConfigRepo)(nil)
}

func TestNewPostgresAccountRepo_Initializes(t *testing.T) {
	repo := NewPostgresAccountRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 一意制約違反のSQLSTATEコードがErrDuplicateLinkに変換されることを検証する
// ためのコード定数の確認。
func TestUniqueViolationCode(t *testing.T) {
	pqErr := &pq.Error{Code: pq.ErrorCode(uniqueViolation)}

	var target *pq.Error
	if !errors.As(error(pqErr), &target) {
		t.Fatal("pq.Errorとして判別できない")
	}
	if string(target.Code) != "23505" {
		t.Errorf("uniqueViolation = %q, want %q", target.Code, "23505")
	}
}
