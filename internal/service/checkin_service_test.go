package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository/memory"
	"github.com/spec-kit/checkin-service/internal/service"
	"github.com/spec-kit/checkin-service/internal/signer"
	apperrors "github.com/spec-kit/checkin-service/pkg/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc        *service.CheckinService
	tokens     *memory.TokenStore
	attendance *memory.AttendanceStore
	audit      *memory.AuditStore
	players    *memory.PlayerStore
	clock      *fakeClock
	signer     *signer.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	sgn := signer.New(signer.NewRotatingSecrets("test-signing-secret", ""))
	tokens := memory.NewTokenStore()
	attendance := memory.NewAttendanceStore()
	audit := memory.NewAuditStore()
	players := memory.NewPlayerStore(domain.Player{
		ID:     "player-42",
		Name:   "Jamie Doe",
		Email:  "jamie@example.com",
		Status: domain.PlayerStatusActive,
	})

	svc := service.NewCheckinService(service.CheckinDependencies{
		TokenRepo:      tokens,
		AttendanceRepo: attendance,
		AuditRepo:      audit,
		PlayerRepo:     players,
		Signer:         sgn,
		Clock:          clock,
		Window:         30 * time.Minute,
	})
	return &testEnv{svc: svc, tokens: tokens, attendance: attendance, audit: audit, players: players, clock: clock, signer: sgn}
}

func (e *testEnv) issue(t *testing.T, sessionID string, kind domain.SessionKind) *domain.Token {
	t.Helper()
	token, err := e.svc.IssueToken(context.Background(), service.IssueInput{
		PlayerID:    "player-42",
		SessionID:   sessionID,
		SessionKind: kind,
	}, service.RequestMetadata{Actor: "player-42", ActorType: domain.SubjectTypePlayer})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

func redeemInput(token *domain.Token, scannerID string) service.RedeemInput {
	return service.RedeemInput{
		PlayerID:       token.PlayerID,
		SessionID:      token.SessionID,
		SessionKind:    token.SessionKind,
		IssuedAtMillis: token.IssuedAtMillis,
		Signature:      token.Signature,
		ScannerID:      scannerID,
	}
}

func scannerMeta() service.RequestMetadata {
	return service.RequestMetadata{Actor: "coach-1", ActorType: domain.SubjectTypeStaff, IP: "10.0.0.1"}
}

// ── Issuance ─────────────────────────────────────────────────────────────────

func TestIssueToken_CreatesActiveSignedToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	if token.State != domain.TokenStateActive {
		t.Errorf("expected ACTIVE, got %s", token.State)
	}
	if !env.signer.Verify(token.PlayerID, token.SessionID, token.IssuedAtMillis, token.Signature) {
		t.Error("issued signature does not verify")
	}
	wantExpiry := env.clock.Now().Add(30 * time.Minute)
	if !token.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, token.ExpiresAt)
	}

	entries := env.audit.Entries()
	if len(entries) != 1 || entries[0].Action != domain.AuditGenerate {
		t.Fatalf("expected one generate audit entry, got %+v", entries)
	}
	if env.attendance.Len() != 0 {
		t.Error("issuance must not write attendance")
	}
}

func TestIssueToken_EmptySessionMeansUnbound(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "", domain.SessionKindIdentity)

	if token.SessionID != domain.SessionUnbound {
		t.Errorf("expected sentinel session id, got %q", token.SessionID)
	}
	if token.Bound() {
		t.Error("identity token should be unbound")
	}
}

func TestIssueToken_UnknownPlayer(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.IssueToken(context.Background(), service.IssueInput{
		PlayerID:    "ghost",
		SessionKind: domain.SessionKindIdentity,
	}, scannerMeta())
	if apperrors.CodeOf(err) != service.CodePlayerNotFound {
		t.Errorf("expected %s, got %v", service.CodePlayerNotFound, err)
	}
}

func TestIssueToken_MultipleOutstandingTokensIndependent(t *testing.T) {
	env := newTestEnv(t)
	first := env.issue(t, "session-7", domain.SessionKindTraining)
	env.clock.Advance(time.Millisecond)
	second := env.issue(t, "session-7", domain.SessionKindTraining)

	if first.Signature == second.Signature {
		t.Error("expected distinct signatures for distinct issuance timestamps")
	}
	if _, err := env.svc.Redeem(context.Background(), redeemInput(second, "coach-1"), scannerMeta()); err != nil {
		t.Fatalf("second token should redeem: %v", err)
	}
	if _, err := env.svc.Redeem(context.Background(), redeemInput(first, "coach-1"), scannerMeta()); err != nil {
		t.Fatalf("first token should still redeem independently: %v", err)
	}
}

// ── Redemption pipeline ──────────────────────────────────────────────────────

func TestRedeem_SuccessWritesAttendance(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	result, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta())
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if result.Player == nil || result.Player.Name != "Jamie Doe" {
		t.Error("expected player resolution in result")
	}
	if result.Attendance == nil {
		t.Fatal("expected attendance record")
	}
	if result.Attendance.Status != domain.AttendancePresent {
		t.Errorf("expected PRESENT, got %s", result.Attendance.Status)
	}
	if result.Attendance.Source != domain.SourceQR {
		t.Errorf("expected QR source, got %s", result.Attendance.Source)
	}
	if result.Attendance.RecordedBy != "coach-1" {
		t.Errorf("expected recorded_by=coach-1, got %s", result.Attendance.RecordedBy)
	}

	stored, err := env.tokens.GetByID(context.Background(), token.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.State != domain.TokenStateConsumed {
		t.Errorf("expected CONSUMED, got %s", stored.State)
	}
	if stored.ConsumedBy == nil || *stored.ConsumedBy != "coach-1" {
		t.Error("expected consumed_by=coach-1")
	}

	entries := env.audit.Entries()
	last := entries[len(entries)-1]
	if last.Action != domain.AuditScanSuccess {
		t.Errorf("expected scan_success audit, got %s", last.Action)
	}
	if last.Metadata.IP != "10.0.0.1" {
		t.Errorf("expected scanner ip in metadata, got %q", last.Metadata.IP)
	}
}

func TestRedeem_SecondScanAlreadyUsed(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	if _, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta()); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-2"), scannerMeta())
	if apperrors.CodeOf(err) != service.CodeQRAlreadyUsed {
		t.Errorf("expected %s, got %v", service.CodeQRAlreadyUsed, err)
	}

	entries := env.audit.Entries()
	last := entries[len(entries)-1]
	if last.Action != domain.AuditScanAlreadyUsed {
		t.Errorf("expected scan_already_used audit, got %s", last.Action)
	}
}

func TestRedeem_ExpiredByClock(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	env.clock.Advance(31 * time.Minute)
	_, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta())
	if apperrors.CodeOf(err) != service.CodeQRExpired {
		t.Errorf("expected %s, got %v", service.CodeQRExpired, err)
	}

	// The stored row still says ACTIVE; expiry is decided by timestamp.
	stored, _ := env.tokens.GetByID(context.Background(), token.ID)
	if stored.State != domain.TokenStateActive {
		t.Errorf("lazy expiry must not mutate state, got %s", stored.State)
	}
	entries := env.audit.Entries()
	if entries[len(entries)-1].Action != domain.AuditScanExpired {
		t.Errorf("expected scan_expired audit, got %s", entries[len(entries)-1].Action)
	}
}

func TestRedeem_ExactlyAtWindowBoundaryStillValid(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	env.clock.Advance(30 * time.Minute)
	if _, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta()); err != nil {
		t.Errorf("redeem at exact boundary should succeed: %v", err)
	}
}

func TestRedeem_TamperedSignature(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	input := redeemInput(token, "coach-1")
	b := []byte(input.Signature)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	input.Signature = string(b)

	_, err := env.svc.Redeem(context.Background(), input, scannerMeta())
	if apperrors.CodeOf(err) != service.CodeQRSignatureInvalid {
		t.Errorf("expected %s, got %v", service.CodeQRSignatureInvalid, err)
	}

	// Token untouched; the genuine payload still works.
	if _, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta()); err != nil {
		t.Errorf("genuine payload should still redeem: %v", err)
	}
}

func TestRedeem_TamperedFieldsInvalidateSignature(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	input := redeemInput(token, "coach-1")
	input.PlayerID = "player-99" // claim someone else's identity
	_, err := env.svc.Redeem(context.Background(), input, scannerMeta())
	if apperrors.CodeOf(err) != service.CodeQRSignatureInvalid {
		t.Errorf("expected %s, got %v", service.CodeQRSignatureInvalid, err)
	}
}

func TestRedeem_SessionMismatch(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	input := redeemInput(token, "coach-1")
	other := "session-8"
	input.ClaimedSessionID = &other
	_, err := env.svc.Redeem(context.Background(), input, scannerMeta())
	if apperrors.CodeOf(err) != service.CodeSessionMismatch {
		t.Errorf("expected %s, got %v", service.CodeSessionMismatch, err)
	}

	stored, _ := env.tokens.GetByID(context.Background(), token.ID)
	if stored.State != domain.TokenStateActive {
		t.Error("mismatch must not consume the token")
	}
}

func TestRedeem_IdentityTokenPassesAnyClaimedSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "", domain.SessionKindIdentity)

	input := redeemInput(token, "coach-1")
	claimed := "session-8"
	input.ClaimedSessionID = &claimed
	if _, err := env.svc.Redeem(context.Background(), input, scannerMeta()); err != nil {
		t.Errorf("identity token should pass session match: %v", err)
	}
}

func TestRedeem_NotFound(t *testing.T) {
	env := newTestEnv(t)
	issuedAt := env.clock.Now().UnixMilli()
	// Correctly signed payload for which no token row was ever created.
	input := service.RedeemInput{
		PlayerID:       "player-42",
		SessionID:      "session-7",
		SessionKind:    domain.SessionKindTraining,
		IssuedAtMillis: issuedAt,
		Signature:      env.signer.Sign("player-42", "session-7", issuedAt),
		ScannerID:      "coach-1",
	}
	_, err := env.svc.Redeem(context.Background(), input, scannerMeta())
	if apperrors.CodeOf(err) != service.CodeQRNotFound {
		t.Errorf("expected %s, got %v", service.CodeQRNotFound, err)
	}
	entries := env.audit.Entries()
	if entries[len(entries)-1].Action != domain.AuditScanNotFound {
		t.Errorf("expected scan_not_found audit, got %s", entries[len(entries)-1].Action)
	}
}

func TestRedeem_MalformedPayloads(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	cases := []struct {
		name   string
		mutate func(*service.RedeemInput)
	}{
		{"missing player", func(in *service.RedeemInput) { in.PlayerID = "" }},
		{"missing timestamp", func(in *service.RedeemInput) { in.IssuedAtMillis = 0 }},
		{"missing signature", func(in *service.RedeemInput) { in.Signature = "" }},
		{"missing session", func(in *service.RedeemInput) { in.SessionID = "" }},
		{"unknown kind", func(in *service.RedeemInput) { in.SessionKind = "KARAOKE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := redeemInput(token, "coach-1")
			tc.mutate(&input)
			_, err := env.svc.Redeem(context.Background(), input, scannerMeta())
			if apperrors.CodeOf(err) != service.CodeQRFormatInvalid {
				t.Errorf("expected %s, got %v", service.CodeQRFormatInvalid, err)
			}
		})
	}
}

func TestRedeem_MissingPlayerRecordConsumesWithWarning(t *testing.T) {
	env := newTestEnv(t)
	// A token row for a player the directory no longer knows.
	issuedAt := env.clock.Now().UnixMilli()
	token := &domain.Token{
		ID:             "orphan-token",
		PlayerID:       "deleted-player",
		SessionID:      "session-7",
		SessionKind:    domain.SessionKindTraining,
		Signature:      env.signer.Sign("deleted-player", "session-7", issuedAt),
		IssuedAtMillis: issuedAt,
		ExpiresAt:      env.clock.Now().Add(30 * time.Minute),
		State:          domain.TokenStateActive,
	}
	if err := env.tokens.Create(context.Background(), token); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta())
	if err != nil {
		t.Fatalf("redeem should not fail outright: %v", err)
	}
	if result.Warning == "" {
		t.Error("expected a warning for missing player record")
	}
	if result.Attendance != nil {
		t.Error("no attendance should be written without a player")
	}

	// The token is spent regardless.
	stored, _ := env.tokens.GetByID(context.Background(), token.ID)
	if stored.State != domain.TokenStateConsumed {
		t.Errorf("expected CONSUMED, got %s", stored.State)
	}
}

// ── Concurrency ──────────────────────────────────────────────────────────────

func TestRedeem_ConcurrentScannersExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	const n = 64
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta())
			errs[i] = err
		}(i)
	}
	wg.Wait()

	var successes, alreadyUsed int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperrors.CodeOf(err) == service.CodeQRAlreadyUsed:
			alreadyUsed++
		default:
			t.Errorf("unexpected error under race: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if alreadyUsed != n-1 {
		t.Errorf("expected %d already-used, got %d", n-1, alreadyUsed)
	}
	if env.attendance.Len() != 1 {
		t.Errorf("expected a single attendance row, got %d", env.attendance.Len())
	}
}

// ── Explicit expire ──────────────────────────────────────────────────────────

func TestExpireToken_ThenRedeemReportsExpired(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	if err := env.svc.ExpireToken(context.Background(), token.ID, scannerMeta()); err != nil {
		t.Fatalf("ExpireToken: %v", err)
	}

	_, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta())
	if apperrors.CodeOf(err) != service.CodeQRExpired {
		t.Errorf("explicitly expired token must report expiry, got %v", err)
	}
}

func TestExpireToken_ConsumedTokenIsNoop(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)
	if _, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta()); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	err := env.svc.ExpireToken(context.Background(), token.ID, scannerMeta())
	if apperrors.CodeOf(err) != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND for consumed token, got %v", err)
	}
	stored, _ := env.tokens.GetByID(context.Background(), token.ID)
	if stored.State != domain.TokenStateConsumed {
		t.Error("expire must not resurrect or overwrite a consumed token")
	}
}

func TestExpireToken_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.ExpireToken(context.Background(), "nope", scannerMeta())
	if apperrors.CodeOf(err) != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

// ── Manual override ──────────────────────────────────────────────────────────

func TestSetAttendance_InsertsManualRecord(t *testing.T) {
	env := newTestEnv(t)
	record, err := env.svc.SetAttendance(context.Background(), service.ManualAttendanceInput{
		PlayerID:    "player-42",
		SessionID:   "session-7",
		SessionKind: domain.SessionKindTraining,
		Status:      domain.AttendanceLate,
		RecordedBy:  "coach-1",
	}, scannerMeta())
	if err != nil {
		t.Fatalf("SetAttendance: %v", err)
	}
	if record.Source != domain.SourceManual {
		t.Errorf("expected MANUAL source, got %s", record.Source)
	}
	if record.Status != domain.AttendanceLate {
		t.Errorf("expected LATE, got %s", record.Status)
	}

	entries := env.audit.Entries()
	if entries[len(entries)-1].Action != domain.AuditManualAttendance {
		t.Errorf("expected manual_attendance audit, got %s", entries[len(entries)-1].Action)
	}
}

func TestSetAttendance_ConvergesWithQRRecord(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)
	if _, err := env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta()); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// Override the same tuple: no duplicate, last write wins.
	record, err := env.svc.SetAttendance(context.Background(), service.ManualAttendanceInput{
		PlayerID:    "player-42",
		SessionID:   "session-7",
		SessionKind: domain.SessionKindTraining,
		Status:      domain.AttendanceExcused,
		RecordedBy:  "coach-2",
	}, scannerMeta())
	if err != nil {
		t.Fatalf("SetAttendance: %v", err)
	}
	if env.attendance.Len() != 1 {
		t.Errorf("expected a single converged record, got %d", env.attendance.Len())
	}
	if record.Status != domain.AttendanceExcused || record.Source != domain.SourceManual {
		t.Errorf("last write should win: %+v", record)
	}
}

func TestSetAttendance_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name  string
		input service.ManualAttendanceInput
	}{
		{"missing session", service.ManualAttendanceInput{PlayerID: "player-42", SessionKind: domain.SessionKindTraining, Status: domain.AttendancePresent}},
		{"bad status", service.ManualAttendanceInput{PlayerID: "player-42", SessionID: "s", SessionKind: domain.SessionKindTraining, Status: "MAYBE"}},
		{"bad kind", service.ManualAttendanceInput{PlayerID: "player-42", SessionID: "s", SessionKind: "GALA", Status: domain.AttendancePresent}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.SetAttendance(context.Background(), tc.input, scannerMeta()); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSetAttendance_NeverTouchesTokens(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	if _, err := env.svc.SetAttendance(context.Background(), service.ManualAttendanceInput{
		PlayerID:    "player-42",
		SessionID:   "session-7",
		SessionKind: domain.SessionKindTraining,
		Status:      domain.AttendancePresent,
		RecordedBy:  "coach-1",
	}, scannerMeta()); err != nil {
		t.Fatalf("SetAttendance: %v", err)
	}

	stored, _ := env.tokens.GetByID(context.Background(), token.ID)
	if stored.State != domain.TokenStateActive {
		t.Error("manual override must not consume tokens")
	}
}

// ── Audit query ──────────────────────────────────────────────────────────────

func TestListAuditEntries_NewestFirstAndClamped(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 120; i++ {
		env.issue(t, "session-7", domain.SessionKindTraining)
		env.clock.Advance(time.Second)
	}

	entries, err := env.svc.ListAuditEntries(context.Background(), "player-42", 500, 0)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(entries) != 100 {
		t.Errorf("expected clamp to 100, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].RecordedAt.After(entries[i-1].RecordedAt) {
			t.Fatal("expected newest-first ordering")
		}
	}
}

func TestListAuditEntries_EveryAttemptLeavesATrace(t *testing.T) {
	env := newTestEnv(t)
	token := env.issue(t, "session-7", domain.SessionKindTraining)

	// Failure, then success, then failure: four entries including generate.
	bad := redeemInput(token, "coach-1")
	bad.Signature = ""
	_, _ = env.svc.Redeem(context.Background(), bad, scannerMeta())
	_, _ = env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta())
	_, _ = env.svc.Redeem(context.Background(), redeemInput(token, "coach-1"), scannerMeta())

	actions := []domain.AuditAction{}
	for _, entry := range env.audit.Entries() {
		actions = append(actions, entry.Action)
	}
	want := []domain.AuditAction{
		domain.AuditGenerate,
		domain.AuditScanMalformed,
		domain.AuditScanSuccess,
		domain.AuditScanAlreadyUsed,
	}
	if len(actions) != len(want) {
		t.Fatalf("expected %d audit entries, got %d (%v)", len(want), len(actions), actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], actions[i])
		}
	}
}
