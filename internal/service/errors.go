package service

import (
	"net/http"

	apperrors "github.com/spec-kit/checkin-service/pkg/util"
)

// Machine codes for every way a scan can fail. Handlers surface these
// verbatim so clients can branch on them.
const (
	CodeQRFormatInvalid    = "QR_FORMAT_INVALID"
	CodeQRExpired          = "QR_EXPIRED"
	CodeQRSignatureInvalid = "QR_SIGNATURE_INVALID"
	CodeSessionMismatch    = "SESSION_MISMATCH"
	CodeQRNotFound         = "QR_NOT_FOUND"
	CodeQRAlreadyUsed      = "QR_ALREADY_USED"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeStorageTimeout     = "STORAGE_TIMEOUT"
)

func errQRFormat(reason string) error {
	return apperrors.NewDomainError(CodeQRFormatInvalid, "qr payload is malformed", http.StatusBadRequest, map[string]any{"reason": reason})
}

func errQRExpired() error {
	return apperrors.NewDomainError(CodeQRExpired, "qr code has expired", http.StatusGone, nil)
}

func errQRSignatureInvalid() error {
	return apperrors.NewDomainError(CodeQRSignatureInvalid, "qr signature is invalid", http.StatusUnauthorized, nil)
}

func errSessionMismatch(claimed, embedded string) error {
	return apperrors.NewDomainError(CodeSessionMismatch, "qr code was issued for a different session", http.StatusConflict,
		map[string]any{"claimed_session_id": claimed, "token_session_id": embedded})
}

func errQRNotFound() error {
	return apperrors.NewDomainError(CodeQRNotFound, "qr code not found", http.StatusNotFound, nil)
}

func errQRAlreadyUsed() error {
	return apperrors.NewDomainError(CodeQRAlreadyUsed, "qr code has already been used", http.StatusConflict, nil)
}

func errPlayerNotFound(playerID string) error {
	return apperrors.NewDomainError(CodePlayerNotFound, "player not found", http.StatusNotFound, map[string]any{"player_id": playerID})
}

func errStorageTimeout(err error) error {
	return &apperrors.DomainError{
		Code:       CodeStorageTimeout,
		Message:    "storage operation timed out",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}
