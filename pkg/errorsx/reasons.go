package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonTransportConnect ReasonCode = "transport_connect"
	ReasonTransportSend    ReasonCode = "transport_send"

	ReasonSetupRejected   ReasonCode = "setup_rejected"
	ReasonTurnTimeout     ReasonCode = "turn_timeout"
	ReasonNormalize       ReasonCode = "normalize"
	ReasonCaptureStart    ReasonCode = "capture_start"
	ReasonCredentialStore ReasonCode = "credential_store"
	ReasonBadState        ReasonCode = "bad_state"
)
