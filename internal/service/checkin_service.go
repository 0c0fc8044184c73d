package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/observability"
	"github.com/spec-kit/checkin-service/internal/repository"
	"github.com/spec-kit/checkin-service/internal/signer"
	apperrors "github.com/spec-kit/checkin-service/pkg/util"
)

// ReplayGuard is the optional fast-path duplicate filter in front of the
// token store. Implementations must be advisory: the conditional update in
// the token repository stays the authority on consumption.
type ReplayGuard interface {
	Reserve(ctx context.Context, signature string) (bool, error)
	Release(ctx context.Context, signature string)
}

// CheckinService owns the token lifecycle: issuance, redemption, explicit
// expiry, manual attendance overrides and the audit trail around all of them.
type CheckinService struct {
	tokens     repository.TokenRepository
	attendance repository.AttendanceRepository
	audit      repository.AuditRepository
	players    repository.PlayerRepository
	sessions   repository.SessionRepository
	signer     *signer.Signer
	clock      Clock
	window     time.Duration
	replay     ReplayGuard
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// CheckinDependencies bundles collaborators for the check-in service.
type CheckinDependencies struct {
	TokenRepo      repository.TokenRepository
	AttendanceRepo repository.AttendanceRepository
	AuditRepo      repository.AuditRepository
	PlayerRepo     repository.PlayerRepository
	SessionRepo    repository.SessionRepository
	Signer         *signer.Signer
	Clock          Clock
	Window         time.Duration
	ReplayGuard    ReplayGuard
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewCheckinService constructs the service.
func NewCheckinService(deps CheckinDependencies) *CheckinService {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	window := deps.Window
	if window <= 0 {
		window = 30 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckinService{
		tokens:     deps.TokenRepo,
		attendance: deps.AttendanceRepo,
		audit:      deps.AuditRepo,
		players:    deps.PlayerRepo,
		sessions:   deps.SessionRepo,
		signer:     deps.Signer,
		clock:      clock,
		window:     window,
		replay:     deps.ReplayGuard,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RequestMetadata carries caller context into the audit trail.
type RequestMetadata struct {
	Actor     string
	ActorType domain.SubjectType
	IP        string
	UserAgent string
}

// IssueInput describes a token issuance request. SessionID left empty
// produces an identity token not bound to any session.
type IssueInput struct {
	PlayerID    string
	SessionID   string
	SessionKind domain.SessionKind
}

// RedeemInput is the presented payload plus scanner context. The payload
// fields are the entire trust envelope; nothing else from the client is
// trusted beyond comparison.
type RedeemInput struct {
	PlayerID         string
	SessionID        string
	SessionKind      domain.SessionKind
	IssuedAtMillis   int64
	Signature        string
	ClaimedSessionID *string
	ScannerID        string
}

// RedeemResult reports a successful redemption. Warning is set when the
// token was consumed but a non-fatal follow-up step failed.
type RedeemResult struct {
	Token      *domain.Token
	Player     *domain.Player
	Session    *domain.TrainingSession
	Attendance *domain.AttendanceRecord
	Warning    string
}

// ManualAttendanceInput describes a supervisor override.
type ManualAttendanceInput struct {
	PlayerID    string
	SessionID   string
	SessionKind domain.SessionKind
	Status      domain.AttendanceStatus
	RecordedBy  string
	Location    *string
	Notes       *string
}

// IssueToken creates a new active token for the player, signs it and records
// the issuance. It never touches the attendance ledger.
func (s *CheckinService) IssueToken(ctx context.Context, input IssueInput, meta RequestMetadata) (*domain.Token, error) {
	if input.PlayerID == "" {
		return nil, apperrors.NewValidationError("player_id required", nil)
	}
	if !domain.ValidSessionKind(input.SessionKind) {
		return nil, apperrors.NewValidationError("invalid session_kind", nil)
	}
	if _, err := s.players.GetByID(ctx, input.PlayerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errPlayerNotFound(input.PlayerID)
		}
		return nil, err
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = domain.SessionUnbound
	}

	now := s.clock.Now()
	issuedAt := now.UnixMilli()
	token := &domain.Token{
		ID:             uuid.NewString(),
		PlayerID:       input.PlayerID,
		SessionID:      sessionID,
		SessionKind:    input.SessionKind,
		Signature:      s.signer.Sign(input.PlayerID, sessionID, issuedAt),
		IssuedAtMillis: issuedAt,
		ExpiresAt:      now.Add(s.window),
		State:          domain.TokenStateActive,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, mapStorageErr(err)
	}

	s.recordAudit(ctx, token.PlayerID, &token.SessionID, domain.AuditGenerate, domain.AuditMetadata{
		Actor:     meta.Actor,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTokenIssued,
		PlayerID: token.PlayerID,
		Actor:    actorFromMetadata(meta),
		Payload: events.TokenIssuedPayload{
			TokenID:     token.ID,
			SessionID:   token.SessionID,
			SessionKind: token.SessionKind,
			ExpiresAt:   token.ExpiresAt,
		},
	})
	return token, nil
}

// Redeem validates a presented payload and consumes the token exactly once.
// Every exit, success or failure, leaves an audit entry.
func (s *CheckinService) Redeem(ctx context.Context, input RedeemInput, meta RequestMetadata) (*RedeemResult, error) {
	// 1. Format: the payload must carry the fields the signature binds.
	if reason := malformedReason(input); reason != "" {
		s.recordScanAudit(ctx, input, meta, domain.AuditScanMalformed, reason)
		return nil, errQRFormat(reason)
	}

	// 2. Expiry is decided by timestamp, not by whatever state the stored
	// row happens to hold.
	issuedAt := time.UnixMilli(input.IssuedAtMillis)
	if s.clock.Now().After(issuedAt.Add(s.window)) {
		s.recordScanAudit(ctx, input, meta, domain.AuditScanExpired, "token past expiration window")
		return nil, errQRExpired()
	}

	// 3. Signature: re-derive server-side, compare the full digest in
	// constant time.
	if !s.signer.Verify(input.PlayerID, input.SessionID, input.IssuedAtMillis, input.Signature) {
		s.recordScanAudit(ctx, input, meta, domain.AuditScanInvalidSignature, "signature mismatch")
		return nil, errQRSignatureInvalid()
	}

	// 4. Session match: identity tokens pass any scanner; bound tokens must
	// match the scanner's claimed session.
	if input.ClaimedSessionID != nil && input.SessionID != domain.SessionUnbound && input.SessionID != *input.ClaimedSessionID {
		s.recordScanAudit(ctx, input, meta, domain.AuditScanSessionMismatch, "claimed session does not match token")
		return nil, errSessionMismatch(*input.ClaimedSessionID, input.SessionID)
	}

	// 5. Existence.
	token, err := s.tokens.GetBySignature(ctx, input.PlayerID, input.Signature, input.IssuedAtMillis)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.recordScanAudit(ctx, input, meta, domain.AuditScanNotFound, "no matching token record")
			return nil, errQRNotFound()
		}
		return nil, mapStorageErr(err)
	}

	// Advisory fast path: a concurrent scanner that already reserved this
	// signature is rejected without hitting the conditional update.
	reserved := true
	if s.replay != nil {
		ok, rerr := s.replay.Reserve(ctx, token.Signature)
		if rerr != nil {
			s.logger.Warn("replay guard unavailable", zap.Error(rerr))
		} else if !ok {
			s.recordScanAudit(ctx, input, meta, domain.AuditScanAlreadyUsed, "duplicate scan (replay guard)")
			return nil, errQRAlreadyUsed()
		}
	}

	// 6. Atomic consumption: a single conditional update decides the race.
	consumed, state, err := s.tokens.Consume(ctx, token.ID, input.ScannerID, s.clock.Now())
	if err != nil {
		if reserved && s.replay != nil {
			s.replay.Release(ctx, token.Signature)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			s.recordScanAudit(ctx, input, meta, domain.AuditScanNotFound, "token row disappeared")
			return nil, errQRNotFound()
		}
		return nil, mapStorageErr(err)
	}
	if !consumed {
		if state == domain.TokenStateExpired {
			s.recordScanAudit(ctx, input, meta, domain.AuditScanExpired, "token administratively expired")
			return nil, errQRExpired()
		}
		s.recordScanAudit(ctx, input, meta, domain.AuditScanAlreadyUsed, "token already consumed")
		return nil, errQRAlreadyUsed()
	}
	now := s.clock.Now()
	token.State = domain.TokenStateConsumed
	token.ConsumedAt = &now
	token.ConsumedBy = &input.ScannerID

	result := &RedeemResult{Token: token}

	// 7. Player resolution, display only. Failure does not undo the
	// consumption; the token is spent either way.
	player, err := s.players.GetByID(ctx, token.PlayerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			result.Warning = "player record missing; token consumed without attendance"
			s.recordScanAuditWarning(ctx, input, meta, result.Warning)
			return result, nil
		}
		result.Warning = "player lookup failed; token consumed"
		s.recordScanAuditWarning(ctx, input, meta, result.Warning)
		return result, nil
	}
	result.Player = player

	if token.Bound() && s.sessions != nil {
		if session, serr := s.sessions.GetByID(ctx, token.SessionID, token.SessionKind); serr == nil {
			result.Session = session
		}
	}

	// 8. Attendance upsert.
	record := &domain.AttendanceRecord{
		ID:          uuid.NewString(),
		PlayerID:    token.PlayerID,
		SessionID:   token.SessionID,
		SessionKind: token.SessionKind,
		Status:      domain.AttendancePresent,
		CheckInTime: now,
		Source:      domain.SourceQR,
		RecordedBy:  input.ScannerID,
	}
	if err := s.attendance.Upsert(ctx, record); err != nil {
		result.Warning = "attendance write failed; token consumed"
		s.logger.Error("attendance upsert failed", zap.Error(err), zap.String("player_id", token.PlayerID))
		s.recordScanAuditWarning(ctx, input, meta, result.Warning)
		return result, nil
	}
	result.Attendance = record

	s.recordScanAudit(ctx, input, meta, domain.AuditScanSuccess, "")
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTokenRedeemed,
		PlayerID: token.PlayerID,
		Actor:    actorFromMetadata(meta),
		Payload: events.TokenRedeemedPayload{
			TokenID:     token.ID,
			SessionID:   token.SessionID,
			SessionKind: token.SessionKind,
			ScannerID:   input.ScannerID,
		},
	})
	return result, nil
}

// ExpireToken short-circuits a still-active token before its natural expiry.
// Reported as not-found when the token is already consumed or expired.
func (s *CheckinService) ExpireToken(ctx context.Context, tokenID string, meta RequestMetadata) error {
	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("token", map[string]any{"token_id": tokenID})
		}
		return mapStorageErr(err)
	}
	if err := s.tokens.Expire(ctx, tokenID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("active token", map[string]any{"token_id": tokenID})
		}
		return mapStorageErr(err)
	}
	s.recordAudit(ctx, token.PlayerID, &token.SessionID, domain.AuditTokenExpired, domain.AuditMetadata{
		Actor:     meta.Actor,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return nil
}

// SetAttendance is the manual override: a supervisor writes the ledger
// directly. The token store is never touched.
func (s *CheckinService) SetAttendance(ctx context.Context, input ManualAttendanceInput, meta RequestMetadata) (*domain.AttendanceRecord, error) {
	if input.PlayerID == "" || input.SessionID == "" {
		return nil, apperrors.NewValidationError("player_id and session_id required", nil)
	}
	if !domain.ValidSessionKind(input.SessionKind) {
		return nil, apperrors.NewValidationError("invalid session_kind", nil)
	}
	if !domain.ValidAttendanceStatus(input.Status) {
		return nil, apperrors.NewValidationError("invalid status", nil)
	}
	if _, err := s.players.GetByID(ctx, input.PlayerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errPlayerNotFound(input.PlayerID)
		}
		return nil, err
	}

	record := &domain.AttendanceRecord{
		ID:          uuid.NewString(),
		PlayerID:    input.PlayerID,
		SessionID:   input.SessionID,
		SessionKind: input.SessionKind,
		Status:      input.Status,
		CheckInTime: s.clock.Now(),
		Source:      domain.SourceManual,
		RecordedBy:  input.RecordedBy,
		Location:    input.Location,
		Notes:       input.Notes,
	}
	if err := s.attendance.Upsert(ctx, record); err != nil {
		return nil, mapStorageErr(err)
	}

	s.recordAudit(ctx, input.PlayerID, &input.SessionID, domain.AuditManualAttendance, domain.AuditMetadata{
		Actor:     meta.Actor,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Reason:    string(input.Status),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventAttendanceOverridden,
		PlayerID: input.PlayerID,
		Actor:    actorFromMetadata(meta),
		Payload: events.AttendanceOverriddenPayload{
			SessionID:   input.SessionID,
			SessionKind: input.SessionKind,
			Status:      input.Status,
			RecordedBy:  input.RecordedBy,
		},
	})
	return record, nil
}

// ListAuditEntries returns a player's audit trail, newest first. The page
// size is clamped by the repository.
func (s *CheckinService) ListAuditEntries(ctx context.Context, playerID string, limit, offset int) ([]domain.AuditEntry, error) {
	if playerID == "" {
		return nil, apperrors.NewValidationError("player_id required", nil)
	}
	return s.audit.ListByPlayer(ctx, playerID, limit, offset)
}

// ListSessionAttendance returns the ledger rows for one session.
func (s *CheckinService) ListSessionAttendance(ctx context.Context, sessionID string, kind domain.SessionKind) ([]domain.AttendanceRecord, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session_id required", nil)
	}
	if !domain.ValidSessionKind(kind) {
		return nil, apperrors.NewValidationError("invalid session_kind", nil)
	}
	return s.attendance.ListBySession(ctx, sessionID, kind)
}

func malformedReason(input RedeemInput) string {
	switch {
	case input.PlayerID == "":
		return "missing player_id"
	case input.IssuedAtMillis <= 0:
		return "missing issued_at_ms"
	case input.Signature == "":
		return "missing signature"
	case input.SessionID == "":
		return "missing session_id"
	case !domain.ValidSessionKind(input.SessionKind):
		return "unknown session_kind"
	}
	return ""
}

func (s *CheckinService) recordScanAudit(ctx context.Context, input RedeemInput, meta RequestMetadata, action domain.AuditAction, reason string) {
	s.metrics.RecordScan(string(action))
	var sessionID *string
	if input.SessionID != "" {
		id := input.SessionID
		sessionID = &id
	}
	s.recordAudit(ctx, input.PlayerID, sessionID, action, domain.AuditMetadata{
		Actor:            meta.Actor,
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		Reason:           reason,
		ClaimedSessionID: input.ClaimedSessionID,
	})
	if action != domain.AuditScanSuccess {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventScanRejected,
			PlayerID: input.PlayerID,
			Actor:    actorFromMetadata(meta),
			Payload: events.ScanRejectedPayload{
				SessionID: input.SessionID,
				Reason:    string(action),
				ScannerID: input.ScannerID,
			},
		})
	}
}

func (s *CheckinService) recordScanAuditWarning(ctx context.Context, input RedeemInput, meta RequestMetadata, warning string) {
	id := input.SessionID
	s.recordAudit(ctx, input.PlayerID, &id, domain.AuditScanSuccess, domain.AuditMetadata{
		Actor:            meta.Actor,
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		ClaimedSessionID: input.ClaimedSessionID,
		Warning:          warning,
	})
}

func (s *CheckinService) recordAudit(ctx context.Context, playerID string, sessionID *string, action domain.AuditAction, metadata domain.AuditMetadata) {
	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		SessionID: sessionID,
		Action:    action,
		Metadata:  metadata,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		// The attempt outcome has already been decided; a failed audit write
		// must not change it.
		s.logger.Error("audit append failed",
			zap.String("player_id", playerID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (s *CheckinService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorFromMetadata(meta RequestMetadata) events.Actor {
	actor := events.Actor{Type: meta.ActorType}
	if actor.Type == "" {
		actor.Type = domain.SubjectTypeStaff
	}
	if meta.Actor == "" {
		return actor
	}
	id := meta.Actor
	if actor.Type == domain.SubjectTypePlayer {
		actor.PlayerID = &id
	} else {
		actor.StaffID = &id
	}
	return actor
}

// mapStorageErr folds context deadline failures into the storage-timeout
// code; a timeout is a failed attempt, never an ambiguous success.
func mapStorageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errStorageTimeout(err)
	}
	return err
}
