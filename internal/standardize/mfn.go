package standardize

import "fmt"

// MfnRaw is the MFN worker's raw result.details shape (spec §4.5). Both
// the enhanced and legacy encodings are supported, mirroring the original
// automation's two data generations.
type MfnRaw struct {
	// Enhanced format: present when ServiceStatusType != "".
	ServiceStatusType             string
	ServiceFound                  bool
	HasActiveService              bool
	IsActive                      bool
	PendingCeaseOrder             bool
	CancellationImplementationDate string
	CancellationCapturedID        string
	CustomerData                  map[string]any

	// Legacy format.
	LegacyCustomerData     map[string]any // presence implies found+active
	LegacyCancellationData map[string]any // {"found": bool, "primary_row": {...}, "cancellation_captured_id": str}
}

// ExtractCanonical implements the MFN branch of spec §4.5's per-provider
// extraction rules.
func (r MfnRaw) ExtractCanonical() Canonical {
	c := Canonical{Extra: newExtra()}

	if r.ServiceStatusType != "" {
		c.ServiceFound = r.ServiceFound
		c.CustomerFound = r.HasActiveService
		c.IsActive = r.IsActive
		c.PendingCeaseOrder = r.PendingCeaseOrder
		c.CancellationImplementationDate = r.CancellationImplementationDate
		c.CancellationCapturedID = r.CancellationCapturedID

		for k, v := range r.CustomerData {
			setIfNonEmpty(c.Extra, "customer_"+k, stringify(v))
		}
		return c
	}

	// Legacy format.
	if len(r.LegacyCustomerData) > 0 {
		c.CustomerFound = true
		c.IsActive = true
		c.ServiceFound = true
		for k, v := range r.LegacyCustomerData {
			setIfNonEmpty(c.Extra, "customer_"+k, stringify(v))
		}
	}

	if found, ok := r.LegacyCancellationData["found"].(bool); ok && found {
		c.ServiceFound = true
		c.IsActive = false

		if primary, ok := r.LegacyCancellationData["primary_row"].(map[string]any); ok {
			for _, k := range []string{"id", "customer_name", "account_number", "circuit_number",
				"date_time", "record_type", "change_type", "reseller", "activation_date"} {
				setIfNonEmpty(c.Extra, "primary_"+k, stringify(primary[k]))
			}
		}
		if id, ok := r.LegacyCancellationData["cancellation_captured_id"].(string); ok {
			c.CancellationCapturedID = id
		}
	}

	return c
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
