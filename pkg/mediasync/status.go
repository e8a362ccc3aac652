package mediasync

import "fmt"

// validJobStatus reports whether s is one of the known lifecycle states.
func validJobStatus(s JobStatus) bool {
	switch s {
	case StatusNotUploaded, StatusSending, StatusProcessing, StatusEncoding,
		StatusOK, StatusDeleted, StatusError:
		return true
	default:
		return false
	}
}

// isTerminalStatus reports whether a job in status s is finished with the
// upload/poll pipeline. Terminal jobs are only ever touched by the deletion
// sweeper (for StatusDeleted) or an operator.
func isTerminalStatus(s JobStatus) bool {
	switch s {
	case StatusOK, StatusDeleted, StatusError:
		return true
	default:
		return false
	}
}

// isInFlightStatus reports whether a job in status s has an upload in
// progress. In-flight jobs act as their own lock: neither the upload
// scheduler nor a concurrent recovery may re-submit them.
func isInFlightStatus(s JobStatus) bool {
	switch s {
	case StatusSending, StatusProcessing, StatusEncoding:
		return true
	default:
		return false
	}
}

// requireProviderJobID enforces the invariant that a job carries a provider
// id whenever its status implies the provider knows about it.
func requireProviderJobID(job *MediaJob) error {
	switch job.Status {
	case StatusProcessing, StatusEncoding, StatusOK:
		if job.ProviderJobID == "" {
			return fmt.Errorf("%w: status %s requires a provider job id", ErrInvalidJobStatus, job.Status)
		}
	}
	return nil
}
