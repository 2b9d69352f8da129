package standardize

import (
	"strings"

	"github.com/bitstreamfno/orchestrator/internal/domain"
)

// DecideStatus is the deterministic status decision table (spec §4.5).
// completed reports whether the job's internal status reached
// domain.StatusCompleted; canonical is nil when completed is false (the
// job never produced a standardizable result).
//
// This is a pure function: same inputs, same output (property P5).
func DecideStatus(action domain.Action, completed bool, provider domain.Provider, c *Canonical) string {
	if !completed {
		return notCompletedStatus(action)
	}

	if c == nil || !c.ServiceFound {
		return "Bitstream Not Found"
	}

	if c.PendingCeaseOrder || c.PendingRequests {
		return "Bitstream Cancellation Pending"
	}

	if c.CancellationImplementationDate != "" {
		return "Bitstream Already Cancelled"
	}

	if c.CancellationCapturedID != "" && !c.IsActive {
		return "Bitstream Already Cancelled"
	}

	if c.CancellationSubmitted && c.CancellationCapturedID != "" {
		return "Bitstream Cancellation Pending"
	}

	if c.IsActive {
		return "Bitstream Validated"
	}

	if c.CancellationCapturedID != "" {
		return "Bitstream Already Cancelled"
	}

	if provider == domain.ProviderEvotel {
		if c.VerificationStatus == "Unverified" {
			return "Bitstream Verification Pending"
		}
		if c.ISPProvisioned == "No" {
			return "Bitstream ISP Provisioning Pending"
		}
	}

	return "Bitstream Validated"
}

func notCompletedStatus(action domain.Action) string {
	switch {
	case action == domain.ActionValidation:
		return "Bitstream Validation Error"
	case action.IsCancellation():
		return "Bitstream Delete Error"
	default:
		return "Bitstream Processing Error"
	}
}

// ErrorKind is the worker-reported failure classification that drives the
// error-status branch of spec §4.5 (the "Additional error-classified
// statuses" table).
type ErrorKind string

const (
	ErrorKindTimeout           ErrorKind = "TIMEOUT_ERROR"
	ErrorKindPortalUnresponsive ErrorKind = "PORTAL_UNRESPONSIVE"
	ErrorKindLogin             ErrorKind = "LOGIN_ERROR"
	ErrorKindNetwork           ErrorKind = "NETWORK_ERROR"
	ErrorKindWebdriver         ErrorKind = "WEBDRIVER_ERROR"
)

// DecideErrorStatus maps a known worker failure kind to its
// validation/cancellation-variant external status (spec §4.5).
func DecideErrorStatus(action domain.Action, kind ErrorKind) string {
	isCancel := action.IsCancellation()
	branch := func(validation, cancel string) string {
		if isCancel {
			return cancel
		}
		return validation
	}

	switch kind {
	case ErrorKindTimeout:
		return branch("Bitstream Validation Timeout", "Bitstream Delete Timeout")
	case ErrorKindPortalUnresponsive:
		return branch("Bitstream Validation Portal Error", "Bitstream Delete Portal Error")
	case ErrorKindLogin:
		return branch("Bitstream Validation Auth Error", "Bitstream Delete Auth Error")
	case ErrorKindNetwork:
		return branch("Bitstream Validation Network Error", "Bitstream Delete Network Error")
	case ErrorKindWebdriver:
		return branch("Bitstream Validation System Error", "Bitstream Delete System Error")
	default:
		return branch("Bitstream Validation Error", "Bitstream Delete Error")
	}
}

// ParseErrorKind normalizes a free-text error-type string from a worker
// payload by trimming and uppercasing it. An unrecognized string comes
// back as that uppercased value, which DecideErrorStatus's default
// branch handles.
func ParseErrorKind(s string) ErrorKind {
	return ErrorKind(strings.ToUpper(strings.TrimSpace(s)))
}
