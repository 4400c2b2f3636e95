package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a pipeline error. Each stage handles its own transient and
// validation errors locally; only permanent failures and degraded outcomes
// propagate upward.
type Kind string

const (
	// KindTransient covers network/timeout failures talking to the LLM,
	// vector store, database or messaging bridge. Retried with backoff.
	KindTransient Kind = "transient"
	// KindValidation covers malformed LLM output and schema mismatches.
	// Retried a small fixed number of times, then degraded.
	KindValidation Kind = "validation"
	// KindDuplicate marks a message identifier that was already accepted.
	// Treated as success, never as an error by callers.
	KindDuplicate Kind = "duplicate"
	// KindPermanent marks an exhausted retry budget or an irrecoverable
	// result. Routed to a dead-letter record, never silently dropped.
	KindPermanent Kind = "permanent"
)

// AppError is the error type carried across stage boundaries.
type AppError struct {
	Raw       error
	Kind      Kind
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements the error interface.
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e AppError) Unwrap() error {
	return e.Raw
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// KindOf returns the Kind of err when it is (or wraps) an AppError,
// defaulting to transient for unclassified errors so callers err on the
// side of retrying.
func KindOf(err error) Kind {
	var app AppError
	if errors.As(err, &app) {
		return app.Kind
	}
	return KindTransient
}

// IsDuplicate reports whether err marks an already-accepted message.
func IsDuplicate(err error) bool {
	return err != nil && KindOf(err) == KindDuplicate
}

// IsPermanent reports whether err exhausted its retry budget.
func IsPermanent(err error) bool {
	return err != nil && KindOf(err) == KindPermanent
}

// Ledger / ingestion errors

func ErrLedgerUnavailable(err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindTransient,
		Code:      ErrorCode_LEDGER_UNAVAILABLE,
		Message:   "Processing-state ledger unavailable",
		Timestamp: time.Now(),
	}
}

func ErrDuplicateMessage(messageID string) AppError {
	return AppError{
		Kind:      KindDuplicate,
		Code:      ErrorCode_DUPLICATE_MESSAGE,
		Message:   "Message already accepted",
		Timestamp: time.Now(),
	}.WithDetail("message_id", messageID)
}

func ErrDeadLettered(messageID string, err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindPermanent,
		Code:      ErrorCode_DEAD_LETTERED,
		Message:   "Message routed to dead-letter record",
		Timestamp: time.Now(),
	}.WithDetail("message_id", messageID)
}

// Extraction errors

func ErrExtractionMalformed(err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindValidation,
		Code:      ErrorCode_EXTRACTION_MALFORMED,
		Message:   "Language model returned output that failed schema validation",
		Timestamp: time.Now(),
	}
}

func ErrExtractionExhausted(err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindPermanent,
		Code:      ErrorCode_EXTRACTION_EXHAUSTED,
		Message:   "Extraction failed after degrade fallback",
		Timestamp: time.Now(),
	}
}

func ErrLLMUnavailable(err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindTransient,
		Code:      ErrorCode_LLM_UNAVAILABLE,
		Message:   "Language model inference call failed",
		Timestamp: time.Now(),
	}
}

// Storage errors

func ErrCommitFailed(err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindTransient,
		Code:      ErrorCode_COMMIT_FAILED,
		Message:   "Transactional meeting commit failed",
		Timestamp: time.Now(),
	}
}

func ErrVectorStoreFailed(operation string, err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindTransient,
		Code:      ErrorCode_VECTOR_STORE_FAILED,
		Message:   fmt.Sprintf("Vector store operation failed: %s", operation),
		Timestamp: time.Now(),
	}
}

func ErrArchiveFailed(object string, err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindTransient,
		Code:      ErrorCode_ARCHIVE_FAILED,
		Message:   "Artifact archive write failed",
		Timestamp: time.Now(),
	}.WithDetail("object", object)
}

// Bridge errors

func ErrBridgeSendFailed(conversationID string, err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindTransient,
		Code:      ErrorCode_BRIDGE_SEND_FAILED,
		Message:   "Messaging bridge delivery failed",
		Timestamp: time.Now(),
	}.WithDetail("conversation_id", conversationID)
}

func ErrBridgeReceiveFailed(err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindTransient,
		Code:      ErrorCode_BRIDGE_RECEIVE_FAILED,
		Message:   "Messaging bridge receive failed",
		Timestamp: time.Now(),
	}
}

func ErrDispatchExhausted(messageID string, err error) AppError {
	return AppError{
		Raw:       err,
		Kind:      KindPermanent,
		Code:      ErrorCode_DISPATCH_EXHAUSTED,
		Message:   "Reply delivery failed after exhausting retries",
		Timestamp: time.Now(),
	}.WithDetail("message_id", messageID)
}

// Status API errors

func ErrInvalidRequest(message string) AppError {
	return AppError{
		Kind:      KindValidation,
		Code:      ErrorCode_INVALID_REQUEST,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func ErrNotFound(resource, id string) AppError {
	return AppError{
		Kind:      KindValidation,
		Code:      ErrorCode_NOT_FOUND,
		Message:   fmt.Sprintf("%s not found", resource),
		Timestamp: time.Now(),
	}.WithDetail("id", id)
}
