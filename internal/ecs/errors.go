package ecs

import (
	"fmt"
	"strings"
	"time"
)

// StoreError is the tagged error value returned by every fallible
// EntityStore operation: a code, message, entity/component context, and
// timestamp.
type StoreError struct {
	Code      string
	Message   string
	Entity    Entity
	Component ComponentType
	Timestamp time.Time
	Details   string
}

func (e *StoreError) Error() string {
	switch {
	case e.Entity != NullEntity && e.Component != InvalidComponentType:
		return fmt.Sprintf("[%s] %s (entity=%s component=%d)", e.Code, e.Message, e.Entity, e.Component)
	case e.Entity != NullEntity:
		return fmt.Sprintf("[%s] %s (entity=%s)", e.Code, e.Message, e.Entity)
	case e.Component != InvalidComponentType:
		return fmt.Sprintf("[%s] %s (component=%d)", e.Code, e.Message, e.Component)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

func (e *StoreError) WithDetails(d string) *StoreError {
	e.Details = d
	return e
}

// Error category.
type ErrorCategory int

const (
	CategoryProgrammer ErrorCategory = iota
	CategoryInvariant
	CategoryRecoverable
	CategoryIO
)

// Error codes, grouped by category.
const (
	// Programmer errors — fail fast, no recovery.
	ErrStaleEntity                  = "STALE_ENTITY"
	ErrUnknownType                  = "UNKNOWN_TYPE"
	ErrVersionMisuse                = "VERSION_MISUSE"
	ErrCycleInSchedule              = "CYCLE_IN_SCHEDULE"
	ErrUnregisteredPolymorphicType  = "UNREGISTERED_POLYMORPHIC_TYPE"

	// Invariant violations — fail the frame, log, circuit-break.
	ErrPlaybackError  = "PLAYBACK_ERROR"
	ErrSchemaMismatch = "SCHEMA_MISMATCH"
	ErrSystemFault    = "SYSTEM_FAULT"

	// Recoverable conditions.
	ErrPoolGrow        = "POOL_GROW"
	ErrSnapshotBehind  = "SNAPSHOT_BEHIND"
	ErrLifecycleTimeout = "LIFECYCLE_TIMEOUT"

	// I/O errors.
	ErrCorruptRecording = "CORRUPT_RECORDING"
	ErrTruncatedFrame   = "TRUNCATED_FRAME"
	ErrIoFailure        = "IO_FAILURE"
)

func categoryOf(code string) ErrorCategory {
	switch code {
	case ErrStaleEntity, ErrUnknownType, ErrVersionMisuse, ErrCycleInSchedule, ErrUnregisteredPolymorphicType:
		return CategoryProgrammer
	case ErrPlaybackError, ErrSchemaMismatch, ErrSystemFault:
		return CategoryInvariant
	case ErrPoolGrow, ErrSnapshotBehind, ErrLifecycleTimeout:
		return CategoryRecoverable
	case ErrCorruptRecording, ErrTruncatedFrame, ErrIoFailure:
		return CategoryIO
	default:
		return CategoryInvariant
	}
}

// Category reports which error bucket this error falls into.
func (e *StoreError) Category() ErrorCategory {
	return categoryOf(e.Code)
}

// IsFatal reports whether the core should abort rather than recover —
// true only for programmer errors.
func (e *StoreError) IsFatal() bool {
	return e.Category() == CategoryProgrammer
}

// Owner extracts the producing module id from a playback error's Details,
// as set by the store's command-buffer playback wrapping.
func (e *StoreError) Owner() (string, bool) {
	const prefix = "producing module: "
	if !strings.HasPrefix(e.Details, prefix) {
		return "", false
	}
	return strings.TrimPrefix(e.Details, prefix), true
}

func newStoreError(code, msg string) *StoreError {
	return &StoreError{Code: code, Message: msg, Timestamp: time.Now()}
}

func newEntityError(code, msg string, e Entity) *StoreError {
	return &StoreError{Code: code, Message: msg, Entity: e, Timestamp: time.Now()}
}

func newComponentError(code, msg string, e Entity, ct ComponentType) *StoreError {
	return &StoreError{Code: code, Message: msg, Entity: e, Component: ct, Timestamp: time.Now()}
}

// StaleEntityErr reports use of an invalid/expired entity handle.
func StaleEntityErr(e Entity) *StoreError {
	return newEntityError(ErrStaleEntity, "entity handle is stale or invalid", e)
}

// UnknownTypeErr reports use of an unregistered component type.
func UnknownTypeErr(ct ComponentType) *StoreError {
	return newComponentError(ErrUnknownType, "component type is not registered", NullEntity, ct)
}

// VersionMisuseErr reports a double tick() within one frame.
func VersionMisuseErr() *StoreError {
	return newStoreError(ErrVersionMisuse, "tick() called more than once this frame")
}

// PlaybackErrorErr reports a command-buffer op that violated an invariant.
func PlaybackErrorErr(msg string, e Entity) *StoreError {
	return newEntityError(ErrPlaybackError, msg, e)
}
