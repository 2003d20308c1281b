package v1

// Error codes shared by every integration. Retryability travels with the
// fault itself; numeric retry policy (counts, backoff) is station
// configuration, never inferred from the code.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeDroneNotAvailable = "DRONE_NOT_AVAILABLE"
	CodeMissionRejected   = "MISSION_REJECTED"
	CodeCommandTimeout    = "COMMAND_TIMEOUT"
	CodePortResourceBusy  = "PORT_RESOURCE_BUSY"
	CodePortPrecheckFail  = "PORT_PRECHECK_FAILED"
	CodePortChargeTimeout = "PORT_CHARGE_TIMEOUT"
	CodePortDockFailed    = "PORT_DOCK_FAILED"
	CodePortUnavailable   = "PORT_UNAVAILABLE"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Fault is the wire shape of every protocol-level failure.
type Fault struct {
	ErrorCode string `json:"error_code"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

func NewFault(code, reason string, retryable bool) *Fault {
	return &Fault{ErrorCode: code, Reason: reason, Retryable: retryable}
}

func (f *Fault) String() string {
	if f == nil {
		return ""
	}
	if f.Reason == "" {
		return f.ErrorCode
	}
	return f.ErrorCode + ": " + f.Reason
}
