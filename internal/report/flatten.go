// Package report builds and posts the external status report (spec
// §4.6) and deduplicates repeated terminal-status reports triggered by
// passive reconciliation (spec §9 Open Question 2).
package report

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/standardize"
)

// TimestampLayout is the STATUS_DT wire format (spec §4.6).
const TimestampLayout = "2006/01/02 15:04:05"

// Evidence builds the flat JOB_EVI map for a job (spec §4.6): keys carry
// provider prefixes, values are stringified scalars, no nesting.
//
// automationStatus distinguishes the worker-error path from the inner
// status=failure path (spec §9 Open Question 1 resolution, SPEC_FULL §4.6):
// pass "error" for a worker-signalled/transport failure, "failure" for a
// 2xx response whose inner result.status was "failure", or "success" for
// a completed job.
func Evidence(job domain.Job, automationStatus string, canonical *standardize.Canonical) map[string]string {
	evi := map[string]string{
		"provider":          job.Provider.Uppercase(),
		"action":            string(job.Action),
		"job_internal_id":   strconv.FormatInt(job.ID, 10),
		"retry_count":       strconv.Itoa(job.RetryCount),
		"max_retries":       strconv.Itoa(job.MaxRetries),
		"automation_status": automationStatus,
	}

	if job.StartedAt != nil {
		evi["execution_start"] = job.StartedAt.UTC().Format(time.RFC3339)
	}
	if job.UpdatedAt != (time.Time{}) {
		evi["execution_end"] = job.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if job.AssignedWorker != nil {
		evi["assigned_worker"] = *job.AssignedWorker
	}

	for k, v := range job.Parameters {
		setFlat(evi, "job_param_"+k, v)
	}

	if canonical != nil {
		evi["customer_found"] = boolString(canonical.CustomerFound)
		evi["service_found"] = boolString(canonical.ServiceFound)
		evi["is_active"] = boolString(canonical.IsActive)
		if canonical.CancellationCapturedID != "" {
			evi["cancellation_captured_id"] = canonical.CancellationCapturedID
		}
		if canonical.CancellationImplementationDate != "" {
			evi["cancellation_implementation_date"] = canonical.CancellationImplementationDate
		}
		for k, v := range canonical.Extra {
			evi[providerPrefixedKey(job.Provider, k)] = v
		}
	}

	if job.Result != nil {
		for k, v := range job.Result {
			if k == "screenshot_data" {
				continue // not reportable, already persisted as evidence files
			}
			setFlat(evi, "raw_"+k, v)
		}
	}

	return evi
}

// providerPrefixedKey applies the provider-prefix rule from spec §4.6
// ("octotel_…", "evotel_…", falling back to the key as-is for
// provider-agnostic extras like "customer_…" and for keys that already
// carry the provider prefix).
func providerPrefixedKey(p domain.Provider, key string) string {
	switch p {
	case domain.ProviderOctotel, domain.ProviderEvotel:
		if hasAnyPrefix(key, "customer_", "evidence_", string(p)+"_") {
			return key
		}
		return string(p) + "_" + key
	default:
		return key
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

// setFlat stringifies v and writes it to m under key, flattening nested
// maps and slices recursively into "key_subkey" / "key_index" entries
// rather than letting a nested structure leak through (spec §4.6:
// "Nested objects are not permitted inside JOB_EVI"). Nil values and
// empty strings are skipped.
func setFlat(m map[string]string, key string, v any) {
	switch t := v.(type) {
	case nil:
		return
	case string:
		if t != "" {
			m[key] = t
		}
	case bool:
		m[key] = boolString(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			setFlat(m, key+"_"+k, t[k])
		}
	case []any:
		for i, e := range t {
			setFlat(m, fmt.Sprintf("%s_%d", key, i), e)
		}
	default:
		m[key] = fmt.Sprintf("%v", t)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ExternalJobID resolves the JOB_ID field: the client-supplied
// external_job_id, or a synthesized UNKNOWN_<id> fallback (spec §4.6,
// original's `UNKNOWN_{id}` behavior).
func ExternalJobID(job domain.Job) string {
	if job.ExternalJobID != nil && *job.ExternalJobID != "" {
		return *job.ExternalJobID
	}
	return fmt.Sprintf("UNKNOWN_%d", job.ID)
}
