package domain

import "fmt"

// FailureKind classifies errors surfaced to the operator.
type FailureKind string

const (
	FailureCollection        FailureKind = "collection"
	FailureMissingCredential FailureKind = "missing_credential"
	FailureInvalidCredential FailureKind = "invalid_credential"
	FailureEmptyResponse     FailureKind = "empty_response"
	FailureInvalidInput      FailureKind = "invalid_input"
	FailureGeneration        FailureKind = "generation"
	FailureSend              FailureKind = "send"
)

// CollectionError reports a failed news search.
type CollectionError struct {
	Message string
	Err     error
}

func (e *CollectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CollectionError) Unwrap() error { return e.Err }

// GenerationError reports a failed report draft. Kind tells credential problems apart.
type GenerationError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// CredentialRelated reports whether the failure is about the AI credential.
func (e *GenerationError) CredentialRelated() bool {
	return e.Kind == FailureMissingCredential || e.Kind == FailureInvalidCredential
}

// SendError reports a failed distribution.
type SendError struct {
	Message string
	Err     error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SendError) Unwrap() error { return e.Err }
