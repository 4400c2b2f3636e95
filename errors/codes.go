package errors

// ErrorCode is a stable machine-readable identifier attached to every
// AppError. Codes surface in structured logs and the status API.
type ErrorCode int

const (
	ErrorCode_UNKNOWN ErrorCode = iota
	ErrorCode_LEDGER_UNAVAILABLE
	ErrorCode_DUPLICATE_MESSAGE
	ErrorCode_DEAD_LETTERED
	ErrorCode_EXTRACTION_MALFORMED
	ErrorCode_EXTRACTION_EXHAUSTED
	ErrorCode_LLM_UNAVAILABLE
	ErrorCode_COMMIT_FAILED
	ErrorCode_VECTOR_STORE_FAILED
	ErrorCode_ARCHIVE_FAILED
	ErrorCode_BRIDGE_SEND_FAILED
	ErrorCode_BRIDGE_RECEIVE_FAILED
	ErrorCode_DISPATCH_EXHAUSTED
	ErrorCode_INVALID_REQUEST
	ErrorCode_NOT_FOUND
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_UNKNOWN:               "UNKNOWN",
	ErrorCode_LEDGER_UNAVAILABLE:    "LEDGER_UNAVAILABLE",
	ErrorCode_DUPLICATE_MESSAGE:     "DUPLICATE_MESSAGE",
	ErrorCode_DEAD_LETTERED:         "DEAD_LETTERED",
	ErrorCode_EXTRACTION_MALFORMED:  "EXTRACTION_MALFORMED",
	ErrorCode_EXTRACTION_EXHAUSTED:  "EXTRACTION_EXHAUSTED",
	ErrorCode_LLM_UNAVAILABLE:       "LLM_UNAVAILABLE",
	ErrorCode_COMMIT_FAILED:         "COMMIT_FAILED",
	ErrorCode_VECTOR_STORE_FAILED:   "VECTOR_STORE_FAILED",
	ErrorCode_ARCHIVE_FAILED:        "ARCHIVE_FAILED",
	ErrorCode_BRIDGE_SEND_FAILED:    "BRIDGE_SEND_FAILED",
	ErrorCode_BRIDGE_RECEIVE_FAILED: "BRIDGE_RECEIVE_FAILED",
	ErrorCode_DISPATCH_EXHAUSTED:    "DISPATCH_EXHAUSTED",
	ErrorCode_INVALID_REQUEST:       "INVALID_REQUEST",
	ErrorCode_NOT_FOUND:             "NOT_FOUND",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
