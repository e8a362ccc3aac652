package mediasync

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrJobNotFound indicates a media job was not found
	ErrJobNotFound = errors.New("media job not found")

	// ErrMediaNotFound indicates the source asset behind a job no longer exists
	ErrMediaNotFound = errors.New("media not found")

	// ErrNotConfigured indicates a required provider credential is missing
	ErrNotConfigured = errors.New("setting is not set")

	// ErrUploadFailed indicates an upload submission failed
	ErrUploadFailed = errors.New("upload failed")

	// ErrRemoteNotFound indicates the provider reports the asset does not exist.
	// This is distinct from a provider-side error status.
	ErrRemoteNotFound = errors.New("asset not found on provider")

	// ErrDeleteNotSupported indicates the provider has no delete capability.
	// Callers treat it as success-equivalent.
	ErrDeleteNotSupported = errors.New("provider does not support delete")

	// ErrMaxAttemptsExceeded indicates the duplicate-recovery confirmation
	// loop ran out of attempts
	ErrMaxAttemptsExceeded = errors.New("upload status check max attempts exceeded")

	// ErrAuthUnconfirmed indicates the provider rejected session confirmation
	// but operations may still proceed. Logged, never fatal.
	ErrAuthUnconfirmed = errors.New("provider session not confirmed")

	// ErrProviderNotRegistered indicates no provider is registered for a host
	ErrProviderNotRegistered = errors.New("no provider registered for host")

	// ErrJobAlreadyActive indicates the media already has a non-terminal job
	// on the same host. Only one upload per asset and host may be in motion.
	ErrJobAlreadyActive = errors.New("an active job already exists for this media and host")

	// ErrRecoveryNotSupported indicates the job's provider has no
	// duplicate-detection workflow
	ErrRecoveryNotSupported = errors.New("provider does not support duplicate recovery")

	// ErrInvalidJobStatus indicates an unknown job status value
	ErrInvalidJobStatus = errors.New("invalid job status")
)

// ConfigError reports a missing or invalid provider setting.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("setting %s is not set", e.Setting)
}

func (e *ConfigError) Unwrap() error {
	return ErrNotConfigured
}

// JobError represents an error related to a single media job operation
type JobError struct {
	JobID uuid.UUID
	Op    string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job operation %s failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// ProviderError represents a generic remote failure at a hosting provider
type ProviderError struct {
	Host Host
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider operation %s failed on host %s: %v", e.Op, e.Host, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
