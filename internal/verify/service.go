package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/judgelink/internal/judge"
	"github.com/hitoshi/judgelink/internal/model"
	"github.com/hitoshi/judgelink/internal/repository"
	"github.com/hitoshi/judgelink/internal/roles"
)

// recentSubmissionCount は検証時にジャッジへ要求する直近提出の件数。
const recentSubmissionCount = 30

// Status は検証試行の結果分類。
type Status string

const (
	// StatusVerified は検証成功（連携が確定）。
	StatusVerified Status = "verified"
	// StatusMismatch は対象問題への提出はあるがverdictが異なる状態。
	StatusMismatch Status = "mismatch"
	// StatusNotYet は適格な提出が未観測の状態。
	StatusNotYet Status = "not_yet"
	// StatusExpired はセッションが有効期限切れで削除された状態。
	StatusExpired Status = "expired"
	// StatusError は検証を完了できなかった状態（リトライ可能な場合を含む）。
	StatusError Status = "error"
)

// Result は1セッションに対する検証試行の結果。
type Result struct {
	Platform      model.Platform
	Status        Status
	Message       string
	Rank          string
	ProblemURL    string
	ProblemName   string
	TimeRemaining time.Duration
	APIError      *model.APIError // StatusがexpiredまたはerrorのときのAPIエラー
}

// ProblemPicker はチャレンジ問題選択のインターフェース。
// catalog.Catalogが実装する。テスト時にモックに差し替え可能。
type ProblemPicker interface {
	Pick(ctx context.Context, platform model.Platform) (model.Problem, error)
}

// Metrics は検証メトリクス収集のインターフェース。
type Metrics interface {
	RecordSessionStarted(platform model.Platform)
	RecordVerifyOutcome(platform model.Platform, status string)
	RecordJudgeLatency(platform model.Platform, duration time.Duration)
}

// nopMetrics はメトリクス未設定時の何もしない実装。
type nopMetrics struct{}

func (nopMetrics) RecordSessionStarted(model.Platform)              {}
func (nopMetrics) RecordVerifyOutcome(model.Platform, string)       {}
func (nopMetrics) RecordJudgeLatency(model.Platform, time.Duration) {}

// Service は検証セッションのオーケストレータ。
// セッションの状態遷移を唯一所有する。アダプタとカタログは状態を持たない
// サービスオブジェクトであり、遷移の判断はすべてここで行う。
type Service struct {
	clients  map[model.Platform]judge.Client
	catalog  ProblemPicker
	sessions repository.SessionRepository
	accounts repository.AccountRepository
	guilds   repository.GuildConfigRepository
	assigner roles.Assigner
	metrics  Metrics
	logger   *slog.Logger
	window   time.Duration
	now      func() time.Time // テスト用に差し替え可能
}

// NewService はServiceの新しいインスタンスを生成する。
// windowが0以下の場合はデフォルトの10分を使用する。metricsはnil許容。
func NewService(
	clients []judge.Client,
	catalog ProblemPicker,
	sessions repository.SessionRepository,
	accounts repository.AccountRepository,
	guilds repository.GuildConfigRepository,
	assigner roles.Assigner,
	metrics Metrics,
	logger *slog.Logger,
	window time.Duration,
) *Service {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	byPlatform := make(map[model.Platform]judge.Client, len(clients))
	for _, c := range clients {
		byPlatform[c.Platform()] = c
	}

	return &Service{
		clients:  byPlatform,
		catalog:  catalog,
		sessions: sessions,
		accounts: accounts,
		guilds:   guilds,
		assigner: assigner,
		metrics:  metrics,
		logger:   logger,
		window:   window,
		now:      time.Now,
	}
}

// StartSession は検証チャレンジを開始する。
// ユーザー名の存在検証と重複連携チェックを通過した後、チャレンジ問題を選択し、
// 同一キーの既存セッションを上書きしてセッションを永続化する。
// ジャッジへの呼び出しは存在検証のみ。
func (s *Service) StartSession(ctx context.Context, userID, guildID string, platform model.Platform, username string) (*model.VerificationSession, error) {
	client, ok := s.clients[platform]
	if !ok {
		return nil, model.NewInvalidPlatformError(string(platform))
	}

	validateStart := time.Now()
	exists, err := client.ValidateUser(ctx, username)
	s.metrics.RecordJudgeLatency(platform, time.Since(validateStart))
	if err != nil {
		s.logger.Error("ユーザー存在検証に失敗しました",
			slog.String("platform", string(platform)),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBackendUnavailableError(platform)
	}
	if !exists {
		return nil, model.NewUsernameNotFoundError(platform, username)
	}

	// ベストエフォートの重複連携チェック。check-then-create のため競合には
	// 勝てないが、最終防壁はlinked_accountsの一意制約が担う。
	existing, err := s.accounts.FindByHandle(ctx, guildID, platform, username)
	if err != nil {
		return nil, fmt.Errorf("重複連携チェックに失敗しました: %w", err)
	}
	if existing != nil && existing.UserID != userID {
		return nil, model.NewDuplicateLinkError(platform, username)
	}

	problem, err := s.catalog.Pick(ctx, platform)
	if err != nil {
		s.logger.Error("チャレンジ問題の選択に失敗しました",
			slog.String("platform", string(platform)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBackendUnavailableError(platform)
	}

	now := s.now()
	session := &model.VerificationSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		GuildID:     guildID,
		Platform:    platform,
		Username:    username,
		ProblemID:   problem.ID,
		ProblemURL:  problem.URL,
		ProblemName: problem.Name,
		StartedAt:   now,
		ExpiresAt:   now.Add(s.window),
	}

	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	s.metrics.RecordSessionStarted(platform)
	s.logger.Info("検証セッションを開始しました",
		slog.String("user_id", userID),
		slog.String("guild_id", guildID),
		slog.String("platform", string(platform)),
		slog.String("username", username),
		slog.String("problem_id", problem.ID),
		slog.Time("expires_at", session.ExpiresAt),
	)

	return session, nil
}

// Verify はユーザーの進行中セッションに対して検証を試行する。
// platformが空の場合は全プラットフォームのセッションが対象になる。
// セッションが1件もない場合はSESSION_NOT_FOUNDエラーを返す。
func (s *Service) Verify(ctx context.Context, userID, guildID string, platform model.Platform) ([]Result, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID, guildID, platform)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if len(sessions) == 0 {
		return nil, model.NewSessionNotFoundError()
	}

	results := make([]Result, 0, len(sessions))
	for _, session := range sessions {
		result := s.verifySession(ctx, session)
		s.metrics.RecordVerifyOutcome(session.Platform, string(result.Status))
		results = append(results, result)
	}
	return results, nil
}

// verifySession は単一セッションの検証を試行する。
// 失敗した試行はセッションを変更しない。セッションを消費するのは
// 期限切れ削除と検証成功時の確定処理のみ。
func (s *Service) verifySession(ctx context.Context, session *model.VerificationSession) Result {
	now := s.now()

	if session.Expired(now) {
		if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
			s.logger.Error("期限切れセッションの削除に失敗しました",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
		apiErr := model.NewSessionExpiredError()
		return Result{
			Platform:    session.Platform,
			Status:      StatusExpired,
			Message:     apiErr.Message,
			ProblemURL:  session.ProblemURL,
			ProblemName: session.ProblemName,
			APIError:    apiErr,
		}
	}

	client := s.clients[session.Platform]
	fetchStart := time.Now()
	subs, err := client.RecentSubmissions(ctx, session.Username, recentSubmissionCount)
	s.metrics.RecordJudgeLatency(session.Platform, time.Since(fetchStart))
	if err != nil {
		s.logger.Warn("提出履歴の取得に失敗しました",
			slog.String("platform", string(session.Platform)),
			slog.String("username", session.Username),
			slog.String("error", err.Error()),
		)
		apiErr := model.NewBackendUnavailableError(session.Platform)
		return Result{
			Platform:      session.Platform,
			Status:        StatusError,
			Message:       apiErr.Message,
			ProblemURL:    session.ProblemURL,
			ProblemName:   session.ProblemName,
			TimeRemaining: session.Remaining(now),
			APIError:      apiErr,
		}
	}

	match := Match(session.ProblemID, session.StartedAt, subs, client.IsCompileError)

	switch match.Outcome {
	case MatchVerified:
		return s.finalize(ctx, session)

	case MatchMismatch:
		return Result{
			Platform:      session.Platform,
			Status:        StatusMismatch,
			Message:       fmt.Sprintf("%s への提出は見つかりましたが、verdictが %s でした。コンパイルエラーになるコードを提出してください。", session.ProblemID, match.Verdict),
			ProblemURL:    session.ProblemURL,
			ProblemName:   session.ProblemName,
			TimeRemaining: session.Remaining(now),
		}

	default:
		return Result{
			Platform:      session.Platform,
			Status:        StatusNotYet,
			Message:       "提出が見つかりません。チャレンジ問題にコンパイルエラーになるコードを提出してください。",
			ProblemURL:    session.ProblemURL,
			ProblemName:   session.ProblemName,
			TimeRemaining: session.Remaining(now),
		}
	}
}

// finalize は検証成功時の確定処理を行う。
// 連携の永続化 → セッション削除 → ロール付与依頼の順に実行する。
// 連携の永続化とロール付与は意図的に非トランザクショナルであり、
// ロール付与側の障害が記録済みの検証を巻き戻すことはない。
func (s *Service) finalize(ctx context.Context, session *model.VerificationSession) Result {
	// ランクはプロフィールから解決する。取得失敗は連携を妨げない（rankはnull許容）。
	client := s.clients[session.Platform]
	rank := ""
	if profile, err := client.FetchProfile(ctx, session.Username); err != nil {
		s.logger.Warn("プロフィールの取得に失敗したためランクなしで連携します",
			slog.String("platform", string(session.Platform)),
			slog.String("username", session.Username),
			slog.String("error", err.Error()),
		)
	} else {
		rank = profile.Rank
	}

	account := &model.LinkedAccount{
		UserID:   session.UserID,
		GuildID:  session.GuildID,
		Platform: session.Platform,
		Username: session.Username,
		Rank:     rank,
		LinkedAt: s.now(),
	}

	if err := s.accounts.Upsert(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateLink) {
			// 事前チェック後に別ユーザーが同じハンドルを連携した競合。
			// このセッションは成功し得ないため削除する。
			if delErr := s.sessions.DeleteByID(ctx, session.ID); delErr != nil {
				s.logger.Error("重複連携セッションの削除に失敗しました",
					slog.String("session_id", session.ID),
					slog.String("error", delErr.Error()),
				)
			}
			apiErr := model.NewDuplicateLinkError(session.Platform, session.Username)
			return Result{
				Platform: session.Platform,
				Status:   StatusError,
				Message:  apiErr.Message,
				APIError: apiErr,
			}
		}

		// 照合は成功している。セッションを残し、再提出なしの再検証で回復させる。
		s.logger.Error("連携の保存に失敗しました",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		apiErr := model.NewVerifiedNotSavedError()
		return Result{
			Platform: session.Platform,
			Status:   StatusError,
			Message:  apiErr.Message,
			APIError: apiErr,
		}
	}

	if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
		// 連携は保存済み。削除失敗は再検証かスイープで解消される。
		s.logger.Error("検証済みセッションの削除に失敗しました",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.assignRoles(ctx, session, rank)

	s.logger.Info("アカウント連携を確定しました",
		slog.String("user_id", session.UserID),
		slog.String("guild_id", session.GuildID),
		slog.String("platform", string(session.Platform)),
		slog.String("username", session.Username),
		slog.String("rank", rank),
	)

	return Result{
		Platform:    session.Platform,
		Status:      StatusVerified,
		Message:     fmt.Sprintf("%s のアカウント %s の連携を確認しました。", session.Platform, session.Username),
		Rank:        rank,
		ProblemURL:  session.ProblemURL,
		ProblemName: session.ProblemName,
	}
}

// assignRoles はギルド設定を読み取り、ロール付与コラボレータを呼び出す。
// あらゆる失敗はログに記録されるのみで、検証結果には影響しない。
func (s *Service) assignRoles(ctx context.Context, session *model.VerificationSession, rank string) {
	cfg, err := s.guilds.Find(ctx, session.GuildID)
	if err != nil {
		s.logger.Error("ギルド設定の取得に失敗したためロール付与をスキップします",
			slog.String("guild_id", session.GuildID),
			slog.String("error", err.Error()),
		)
		return
	}
	if cfg == nil {
		return
	}

	req := roles.AssignRequest{
		UserID:         session.UserID,
		GuildID:        session.GuildID,
		Platform:       session.Platform,
		Rank:           rank,
		VerifiedRoleID: cfg.VerifiedRoleID,
	}
	if rank != "" {
		req.RankRoleID = cfg.RankRoleMap[rank]
	}
	if req.VerifiedRoleID == "" && req.RankRoleID == "" {
		return
	}

	result, err := s.assigner.AssignRoles(ctx, req)
	if err != nil {
		s.logger.Error("ロール付与に失敗しました（連携は保存済み）",
			slog.String("user_id", session.UserID),
			slog.String("guild_id", session.GuildID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("ロール付与が完了しました",
		slog.String("user_id", session.UserID),
		slog.Bool("verified_role_assigned", result.VerifiedRoleAssigned),
		slog.Bool("rank_role_assigned", result.RankRoleAssigned),
	)
}
