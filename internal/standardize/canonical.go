// Package standardize converts heterogeneous per-provider automation
// results into the canonical shape defined by spec §4.5, then applies the
// deterministic status decision table.
//
// Provider result mappings differ radically (design note, spec §9): each
// provider gets its own tagged raw variant with an ExtractCanonical
// method; the decision table operates only on Canonical.
package standardize

// Canonical is the fixed flat shape the status mapper consumes (spec
// §4.5). All fields are optional; a missing bool is false, a missing
// string pointer is nil.
type Canonical struct {
	ServiceFound  bool
	CustomerFound bool
	IsActive      bool

	PendingCeaseOrder bool
	PendingRequests   bool

	CancellationImplementationDate string // empty = absent
	CancellationCapturedID         string // empty = absent
	CancellationSubmitted          bool

	// Evotel-only fields consulted by the decision table's last two
	// branches (spec §4.5 decision table).
	VerificationStatus string
	ISPProvisioned     string

	// Extra carries provider-specific scalars kept for reporting only
	// (spec §4.5 "Provider-specific extras for reporting only"), already
	// stringified so the External Reporter can flatten them directly.
	Extra map[string]string
}

func newExtra() map[string]string { return make(map[string]string) }

func setIfNonEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
