package standardize

import "strings"

// EvotelRaw is the Evotel worker's raw result.details shape (spec §4.5).
type EvotelRaw struct {
	ServiceSummaryPresent   bool
	WorkOrderSummaryPresent bool
	ComprehensivePresent    bool

	ServiceStatus         string
	WorkOrderStatus       string
	DetailedServiceStatus string
	DetailedWorkOrderStatus string
	ISPProvisioned        string // "Yes" | "No" | ""

	ScheduledTime              string
	PrimaryWorkOrderReference  string

	CustomerName  string
	CustomerEmail string

	VerificationStatus string // ont_details.verification, e.g. "Unverified"
}

func anyContains(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

// ExtractCanonical implements the Evotel branch of spec §4.5: status
// keyword matching across service/work-order status fields, cancelled
// takes priority over pending which takes priority over active.
func (r EvotelRaw) ExtractCanonical() Canonical {
	c := Canonical{Extra: newExtra()}

	if !r.ServiceSummaryPresent && !r.WorkOrderSummaryPresent && !r.ComprehensivePresent {
		return c
	}
	c.ServiceFound = true
	c.CustomerFound = r.CustomerName != "" || r.CustomerEmail != ""

	cancelled := anyContains("cancelled", r.ServiceStatus, r.DetailedServiceStatus) ||
		anyContains("inactive", r.ServiceStatus) ||
		anyContains("failed", r.WorkOrderStatus, r.DetailedWorkOrderStatus)

	pending := anyContains("pending", r.ServiceStatus, r.DetailedServiceStatus) ||
		anyContains("in progress", r.WorkOrderStatus, r.DetailedWorkOrderStatus) ||
		anyContains("provisioning", r.WorkOrderStatus) ||
		r.ISPProvisioned == "No"

	active := anyContains("active", r.ServiceStatus, r.DetailedServiceStatus) ||
		anyContains("provisioned", r.WorkOrderStatus) ||
		anyContains("completed", r.WorkOrderStatus) ||
		anyContains("accepted", r.WorkOrderStatus) ||
		r.ISPProvisioned == "Yes"

	switch {
	case cancelled:
		c.IsActive = false
		if r.ScheduledTime != "" {
			c.CancellationImplementationDate = r.ScheduledTime
		} else {
			c.CancellationImplementationDate = "auto-detected"
		}
		if r.PrimaryWorkOrderReference != "" {
			c.CancellationCapturedID = r.PrimaryWorkOrderReference
		}
	case pending:
		c.IsActive = true
		c.PendingCeaseOrder = true
		if r.PrimaryWorkOrderReference != "" {
			c.CancellationCapturedID = r.PrimaryWorkOrderReference
		}
	case active, c.CustomerFound:
		c.IsActive = true
	default:
		c.IsActive = true
	}

	c.VerificationStatus = r.VerificationStatus
	c.ISPProvisioned = r.ISPProvisioned

	setIfNonEmpty(c.Extra, "customer_name", r.CustomerName)
	setIfNonEmpty(c.Extra, "customer_email", r.CustomerEmail)
	setIfNonEmpty(c.Extra, "evotel_verification_status", r.VerificationStatus)

	return c
}
