package standardize

import "strings"

// OctotelService is one entry in Octotel's services array, consulted for
// a nested pending-cancellation flag (spec §4.5).
type OctotelService struct {
	HasPendingCancellation bool
}

// OctotelRaw is the Octotel worker's raw result.details shape (spec §4.5).
type OctotelRaw struct {
	Found                    bool
	CustomerName             string
	ServiceType              string
	PendingRequestsDetected  bool // top-level flag
	Services                 []OctotelService
	HasPendingCancellation   bool // top-level direct flag
	ChangeRequestAvailable   bool
	ServiceStatus            string

	CancellationSubmitted bool
	ReleaseReference       string
}

// ExtractCanonical implements the Octotel branch of spec §4.5: service
// found from the `found` flag, pending cancellation detected from any of
// three possible locations, cancelled detection from service_status.
func (r OctotelRaw) ExtractCanonical() Canonical {
	c := Canonical{Extra: newExtra()}

	if r.Found {
		c.ServiceFound = true
		c.CustomerFound = r.CustomerName != ""

		pending := r.PendingRequestsDetected || r.HasPendingCancellation
		for _, svc := range r.Services {
			if svc.HasPendingCancellation {
				pending = true
				break
			}
		}

		switch {
		case pending:
			c.PendingCeaseOrder = true
			c.IsActive = true
		case r.ChangeRequestAvailable:
			c.IsActive = true
		default:
			switch strings.ToLower(r.ServiceStatus) {
			case "cancelled":
				c.CancellationImplementationDate = "auto-detected"
				c.IsActive = false
			case "pending":
				c.IsActive = true
				c.PendingCeaseOrder = true
			default:
				c.IsActive = r.ChangeRequestAvailable
			}
		}

		setIfNonEmpty(c.Extra, "octotel_customer_name", r.CustomerName)
		setIfNonEmpty(c.Extra, "octotel_service_type", r.ServiceType)
	}

	if r.CancellationSubmitted {
		c.CancellationSubmitted = true
		c.CancellationCapturedID = r.ReleaseReference
		c.ServiceFound = true
		if c.CancellationImplementationDate == "" {
			c.IsActive = true
			c.PendingCeaseOrder = true
		}
	}

	return c
}
