package domain

import (
	"fmt"
	"strings"
	"time"
)

// Provider is a closed enumeration of supported FNOs.
type Provider string

const (
	ProviderMFN     Provider = "mfn"
	ProviderOSN     Provider = "osn"
	ProviderOctotel Provider = "octotel"
	ProviderEvotel  Provider = "evotel"
)

// NewProvider validates and normalizes a provider string.
func NewProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderMFN, ProviderOSN, ProviderOctotel, ProviderEvotel:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidProvider, s)
	}
}

// Uppercase returns the uppercased FNO code, as required in external reports
// (the FNO field, §4.6).
func (p Provider) Uppercase() string {
	return strings.ToUpper(string(p))
}

// Action is a closed enumeration of job actions.
type Action string

const (
	ActionValidation  Action = "validation"
	ActionCancellation Action = "cancellation"
)

// NewAction validates and normalizes an action string.
func NewAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionValidation, ActionCancellation:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidAction, s)
	}
}

// IsCancellation reports whether this action's failure statuses should use
// the "Delete" naming branch (status mapper §4.5) rather than "Validation".
func (a Action) IsCancellation() bool {
	return strings.Contains(string(a), "cancel")
}

// Status is the job lifecycle state machine (spec §4.2).
type Status string

const (
	StatusPending      Status = "pending"
	StatusRetryPending Status = "retry_pending"
	StatusDispatching  Status = "dispatching"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusError        Status = "error"
	StatusCancelled    Status = "cancelled"
)

// NewStatus validates a status string.
func NewStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusRetryPending, StatusDispatching, StatusRunning,
		StatusCompleted, StatusFailed, StatusError, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, s)
	}
}

// IsTerminal reports whether status is one of the four terminal states
// (completed, failed, error, cancelled). A job in a terminal state is
// never re-dispatched (§4.2).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsCancellable reports whether an API DELETE may transition this status
// to cancelled (§4.9).
func (s Status) IsCancellable() bool {
	switch s {
	case StatusPending, StatusDispatching, StatusRetryPending, StatusRunning:
		return true
	default:
		return false
	}
}

// IsLeased reports whether this status implies the job has been leased at
// least once (§3.1 invariant).
func (s Status) IsLeased() bool {
	switch s {
	case StatusDispatching, StatusRunning, StatusRetryPending:
		return true
	default:
		return false
	}
}

// Job is the job_queue row (spec §3.1).
type Job struct {
	ID             int64
	ExternalJobID  *string

	Provider   Provider
	Action     Action
	Parameters map[string]any

	Priority    int
	RetryCount  int
	MaxRetries  int
	ScheduledFor *time.Time

	Status         Status
	AssignedWorker *string
	LockID         *string
	LockedAt       *time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Result   map[string]any
	Evidence []string
}

// DefaultMaxRetries is the default max_retries when a job descriptor omits
// it (§3.1).
const DefaultMaxRetries = 3

// DefaultPriority is the default priority when a job descriptor omits it
// (recovered from the original's JobBase.priority default, SPEC_FULL §3).
const DefaultPriority = 0

// NewJobDescriptor validates client-supplied fields for job creation and
// fills in defaults. It does not assign ID/timestamps/lease fields — those
// are the store's responsibility on insert.
type NewJobDescriptor struct {
	ExternalJobID *string
	Provider      string
	Action        string
	Parameters    map[string]any
	Priority      *int
	MaxRetries    *int
	ScheduledFor  *time.Time
}

// Validate checks a descriptor and returns a Job ready for insertion with
// Status=pending and zero-value lease/outcome fields.
func (d NewJobDescriptor) Validate() (Job, error) {
	provider, err := NewProvider(d.Provider)
	if err != nil {
		return Job{}, err
	}
	action, err := NewAction(d.Action)
	if err != nil {
		return Job{}, err
	}

	priority := DefaultPriority
	if d.Priority != nil {
		priority = *d.Priority
	}
	if priority < 0 || priority > 10 {
		return Job{}, fmt.Errorf("priority must be 0-10, got %d", priority)
	}

	maxRetries := DefaultMaxRetries
	if d.MaxRetries != nil {
		maxRetries = *d.MaxRetries
	}
	if maxRetries < 0 {
		return Job{}, fmt.Errorf("max_retries must be >= 0, got %d", maxRetries)
	}

	params := d.Parameters
	if params == nil {
		params = make(map[string]any)
	}

	return Job{
		ExternalJobID: d.ExternalJobID,
		Provider:      provider,
		Action:        action,
		Parameters:    params,
		Priority:      priority,
		MaxRetries:    maxRetries,
		ScheduledFor:  d.ScheduledFor,
		Status:        StatusPending,
	}, nil
}
