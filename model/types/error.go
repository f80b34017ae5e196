package types

import (
	"fmt"
	"time"
)

// Kind classifies a workflow failure.
type Kind string

const (
	KindConfiguration Kind = "ConfigurationError"
	KindResource      Kind = "ResourceError"
	KindData          Kind = "DataError"
	KindControlFlow   Kind = "ControlFlowError"
	KindTimeout       Kind = "TimeoutError"
)

// Reason pinpoints a failure within its kind.
type Reason string

const (
	ReasonMissingInput     Reason = "MissingInput"
	ReasonMissingOutput    Reason = "MissingOutput"
	ReasonMissingKey       Reason = "MissingKey"
	ReasonTypeMismatch     Reason = "TypeMismatch"
	ReasonInvalidParameter Reason = "InvalidParameter"
	ReasonDuplicateStep    Reason = "DuplicateStep"
	ReasonUnknownStep      Reason = "UnknownStep"
	ReasonLoopOverrun      Reason = "LoopOverrun"
	ReasonNoBranch         Reason = "NoBranch"
	ReasonWorkflowNotFound Reason = "WorkflowNotFound"
	ReasonResourceLoad     Reason = "ResourceLoad"
	ReasonDeviceCreate     Reason = "DeviceCreate"
	ReasonDeviceCopy       Reason = "DeviceCopy"
	ReasonHandleReleased   Reason = "HandleReleased"
	ReasonInvalidGeometry  Reason = "InvalidGeometryData"
	ReasonEmptyFrame       Reason = "EmptyFrame"
	ReasonFenceTimeout     Reason = "FenceTimeout"
)

// Error is a typed workflow failure. Kind drives the executor's terminal
// classification, Reason and Subject locate the fault in the definition.
type Error struct {
	Kind    Kind
	Reason  Reason
	Subject string
	Message string
	Cause   error
}

// Error implements error.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += fmt.Sprintf("(%v", e.Reason)
		if e.Subject != "" {
			msg += fmt.Sprintf(":%q", e.Subject)
		}
		msg += ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches target against kind, and reason/subject when target sets them.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	if t.Subject != "" && t.Subject != e.Subject {
		return false
	}
	return true
}

// Sentinels for errors.Is matching by kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrResource      = &Error{Kind: KindResource}
	ErrData          = &Error{Kind: KindData}
	ErrControlFlow   = &Error{Kind: KindControlFlow}
	ErrTimeout       = &Error{Kind: KindTimeout}
)

// NewConfigurationError creates a configuration failure.
func NewConfigurationError(reason Reason, subject, message string) *Error {
	return &Error{Kind: KindConfiguration, Reason: reason, Subject: subject, Message: message}
}

// NewMissingInputError reports a step definition missing a required input port.
func NewMissingInputError(port string) *Error {
	return &Error{Kind: KindConfiguration, Reason: ReasonMissingInput, Subject: port, Message: fmt.Sprintf("step definition does not bind required input %q", port)}
}

// NewMissingOutputError reports a step definition missing a required output port.
func NewMissingOutputError(port string) *Error {
	return &Error{Kind: KindConfiguration, Reason: ReasonMissingOutput, Subject: port, Message: fmt.Sprintf("step definition does not bind required output %q", port)}
}

// NewMissingKeyError reports a required context key with no value.
func NewMissingKeyError(key string) *Error {
	return &Error{Kind: KindConfiguration, Reason: ReasonMissingKey, Subject: key, Message: fmt.Sprintf("context has no value for key %q", key)}
}

// NewTypeMismatchError reports a context value of an unexpected type.
func NewTypeMismatchError(key, want string, got interface{}) *Error {
	return &Error{Kind: KindData, Reason: ReasonTypeMismatch, Subject: key, Message: fmt.Sprintf("context key %q holds %T, expected %v", key, got, want)}
}

// NewDuplicateStepError reports two implementations registered under one type id.
func NewDuplicateStepError(typeID string) *Error {
	return &Error{Kind: KindConfiguration, Reason: ReasonDuplicateStep, Subject: typeID, Message: fmt.Sprintf("step %v already registered with a different implementation", typeID)}
}

// NewUnknownStepError reports a type id with no registered implementation.
func NewUnknownStepError(typeID string) *Error {
	return &Error{Kind: KindConfiguration, Reason: ReasonUnknownStep, Subject: typeID, Message: fmt.Sprintf("no step registered for %v", typeID)}
}

// NewLoopOverrunError reports a loop exceeding its iteration ceiling.
func NewLoopOverrunError(typeID string, ceiling int) *Error {
	return &Error{Kind: KindControlFlow, Reason: ReasonLoopOverrun, Subject: typeID, Message: fmt.Sprintf("loop exceeded iteration ceiling %v", ceiling)}
}

// NewNoBranchError reports a switch discriminant matching no branch and no default.
func NewNoBranchError(value string) *Error {
	return &Error{Kind: KindControlFlow, Reason: ReasonNoBranch, Subject: value, Message: fmt.Sprintf("no branch matches %q and no default branch defined", value)}
}

// NewWorkflowNotFoundError reports a package store resolution miss.
func NewWorkflowNotFoundError(pkg, name string) *Error {
	return &Error{Kind: KindControlFlow, Reason: ReasonWorkflowNotFound, Subject: pkg + "/" + name, Message: fmt.Sprintf("workflow %v/%v not found", pkg, name)}
}

// NewResourceError creates a resource failure with an underlying cause.
func NewResourceError(reason Reason, subject string, cause error) *Error {
	return &Error{Kind: KindResource, Reason: reason, Subject: subject, Cause: cause}
}

// NewHandleReleasedError reports use of an already released resource handle.
func NewHandleReleasedError(subject string) *Error {
	return &Error{Kind: KindResource, Reason: ReasonHandleReleased, Subject: subject, Message: fmt.Sprintf("resource %v was already released", subject)}
}

// NewDataError creates a data failure.
func NewDataError(reason Reason, subject, message string) *Error {
	return &Error{Kind: KindData, Reason: reason, Subject: subject, Message: message}
}

// NewTimeoutError reports a bounded wait expiring.
func NewTimeoutError(subject string, limit time.Duration) *Error {
	return &Error{Kind: KindTimeout, Reason: ReasonFenceTimeout, Subject: subject, Message: fmt.Sprintf("wait on %v exceeded %v", subject, limit)}
}
