package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/api/dto"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/service"
	"github.com/spec-kit/checkin-service/internal/signer"
	apperrors "github.com/spec-kit/checkin-service/pkg/util"
)

// CheckinHandler exposes the token lifecycle over HTTP.
type CheckinHandler struct {
	service *service.CheckinService
}

// NewCheckinHandler constructs handler.
func NewCheckinHandler(checkinService *service.CheckinService) *CheckinHandler {
	return &CheckinHandler{service: checkinService}
}

// GenerateQR POST /qr/generate.
func (h *CheckinHandler) GenerateQR(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.GenerateQRRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.PlayerID == "" {
		req.PlayerID = principal.ID()
	}
	// Players may only request their own codes; staff may issue for anyone.
	if principal.SubjectType == domain.SubjectTypePlayer && req.PlayerID != principal.ID() {
		return apperrors.NewForbidden("players may only generate their own codes")
	}
	if req.SessionKind == "" {
		req.SessionKind = domain.SessionKindIdentity
	}

	token, err := h.service.IssueToken(c.Context(), service.IssueInput{
		PlayerID:    req.PlayerID,
		SessionID:   req.SessionID,
		SessionKind: req.SessionKind,
	}, requestMetadata(c, principal))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.QRTokenResponse{
		TokenID:     token.ID,
		PlayerID:    token.PlayerID,
		SessionID:   token.SessionID,
		SessionKind: token.SessionKind,
		IssuedAtMs:  token.IssuedAtMillis,
		Signature:   token.Signature,
		DisplayCode: signer.DisplayCode(token.Signature),
		ExpiresAt:   token.ExpiresAt,
	}})
}

// ScanQR POST /qr/scan.
func (h *CheckinHandler) ScanQR(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewForbidden("staff role required")
	}
	var req dto.ScanQRRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.service.Redeem(c.Context(), service.RedeemInput{
		PlayerID:         req.PlayerID,
		SessionID:        req.SessionID,
		SessionKind:      req.SessionKind,
		IssuedAtMillis:   req.IssuedAtMs,
		Signature:        req.Signature,
		ClaimedSessionID: req.ClaimedSessionID,
		ScannerID:        principal.Staff.ID,
	}, requestMetadata(c, principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scanResponse(result)})
}

// ExpireQR POST /qr/:id/expire.
func (h *CheckinHandler) ExpireQR(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewForbidden("staff role required")
	}
	if err := h.service.ExpireToken(c.Context(), c.Params("id"), requestMetadata(c, principal)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"token_id": c.Params("id"), "state": domain.TokenStateExpired}})
}

// ManualAttendance POST /attendance/manual.
func (h *CheckinHandler) ManualAttendance(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewForbidden("staff role required")
	}
	var req dto.ManualAttendanceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	record, err := h.service.SetAttendance(c.Context(), service.ManualAttendanceInput{
		PlayerID:    req.PlayerID,
		SessionID:   req.SessionID,
		SessionKind: req.SessionKind,
		Status:      req.Status,
		RecordedBy:  principal.Staff.ID,
		Location:    req.Location,
		Notes:       req.Notes,
	}, requestMetadata(c, principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": attendanceResponse(record)})
}

// ListAudit GET /players/:id/audit.
func (h *CheckinHandler) ListAudit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewForbidden("staff role required")
	}
	limit := parseInt(c.Query("page_size"), 50)
	page := parseInt(c.Query("page"), 1)

	entries, err := h.service.ListAuditEntries(c.Context(), c.Params("id"), limit, (page-1)*limit)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.AuditEntryResponse{
			ID:         entry.ID,
			PlayerID:   entry.PlayerID,
			SessionID:  entry.SessionID,
			Action:     entry.Action,
			Metadata:   entry.Metadata,
			RecordedAt: entry.RecordedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// SessionAttendance GET /sessions/:id/attendance.
func (h *CheckinHandler) SessionAttendance(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewForbidden("staff role required")
	}
	kind := domain.SessionKind(c.Query("kind", string(domain.SessionKindTraining)))

	records, err := h.service.ListSessionAttendance(c.Context(), c.Params("id"), kind)
	if err != nil {
		return err
	}
	items := make([]dto.AttendanceResponse, 0, len(records))
	for i := range records {
		items = append(items, attendanceResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func scanResponse(result *service.RedeemResult) dto.ScanQRResponse {
	resp := dto.ScanQRResponse{
		PlayerID:    result.Token.PlayerID,
		SessionID:   result.Token.SessionID,
		SessionKind: result.Token.SessionKind,
		CheckedInAt: result.Token.ConsumedAt,
		Warning:     result.Warning,
	}
	if result.Player != nil {
		resp.PlayerName = result.Player.Name
		resp.TeamName = result.Player.TeamName
	}
	if result.Session != nil {
		resp.Session = &dto.SessionSummary{
			ID:          result.Session.ID,
			Title:       result.Session.Title,
			Kind:        result.Session.Kind,
			ScheduledAt: result.Session.ScheduledAt,
			Location:    result.Session.Location,
		}
	}
	if result.Attendance != nil {
		att := attendanceResponse(result.Attendance)
		resp.Attendance = &att
	}
	return resp
}

func attendanceResponse(record *domain.AttendanceRecord) dto.AttendanceResponse {
	return dto.AttendanceResponse{
		ID:          record.ID,
		PlayerID:    record.PlayerID,
		SessionID:   record.SessionID,
		SessionKind: record.SessionKind,
		Status:      record.Status,
		CheckInTime: record.CheckInTime,
		Source:      record.Source,
		RecordedBy:  record.RecordedBy,
		Location:    record.Location,
		Notes:       record.Notes,
		UpdatedAt:   record.UpdatedAt,
	}
}

func requestMetadata(c *fiber.Ctx, principal *auth.Principal) service.RequestMetadata {
	return service.RequestMetadata{
		Actor:     principal.ID(),
		ActorType: principal.SubjectType,
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
