package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrOperatorOnly     ErrCode = "OPERATOR_ACCESS_ONLY"
	ErrNotParticipant   ErrCode = "NOT_PARTICIPANT"
	ErrInvalidSignature ErrCode = "INVALID_SIGNATURE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrInvalidTransition   ErrCode = "INVALID_TRANSITION"
	ErrTimeWindowViolation ErrCode = "TIME_WINDOW_VIOLATION"
	ErrSessionNotJoinable  ErrCode = "SESSION_NOT_JOINABLE"
	ErrNoPaperAttached     ErrCode = "NO_PAPER_ATTACHED"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrNotJoined            ErrCode = "NOT_JOINED"
	ErrAlreadyCompleted     ErrCode = "ALREADY_COMPLETED"
	ErrAttemptLimitExceeded ErrCode = "ATTEMPT_LIMIT_EXCEEDED"
	ErrAttemptNotInProgress ErrCode = "ATTEMPT_NOT_IN_PROGRESS"
	ErrAttemptTimedOut      ErrCode = "ATTEMPT_TIMED_OUT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrOperatorOnly:
		return "Operasi ini terbatas untuk operator."
	case ErrNotParticipant:
		return "Anda tidak terdaftar sebagai peserta sesi ujian ini."
	case ErrInvalidSignature:
		return "Tanda tangan klien tidak valid."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrInvalidTransition:
		return "Perubahan status sesi ini tidak diperbolehkan."
	case ErrTimeWindowViolation:
		return "Operasi ini berada di luar jendela waktu sesi."
	case ErrSessionNotJoinable:
		return "Sesi ujian ini saat ini tidak dapat diikuti."
	case ErrNoPaperAttached:
		return "Sesi ujian ini belum memiliki paket soal."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrNotJoined:
		return "Anda belum bergabung ke sesi ujian ini."
	case ErrAlreadyCompleted:
		return "Pengerjaan ujian ini sudah diselesaikan."
	case ErrAttemptLimitExceeded:
		return "Batas jumlah pengerjaan ulang telah tercapai."
	case ErrAttemptNotInProgress:
		return "Pengerjaan ujian ini tidak sedang berlangsung."
	case ErrAttemptTimedOut:
		return "Waktu pengerjaan ujian telah habis."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
