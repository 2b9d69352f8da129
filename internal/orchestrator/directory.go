package orchestrator

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// WorkerEndpoint is one configured worker's base execute URL (spec §4.3,
// WORKER_ENDPOINTS).
type WorkerEndpoint struct {
	ExecuteURL string
}

// HealthURL derives the health-check sibling URL by replacing the
// terminal path segment "/execute" with "/health" (spec §4.3).
func (w WorkerEndpoint) HealthURL() string {
	if strings.HasSuffix(w.ExecuteURL, "/execute") {
		return strings.TrimSuffix(w.ExecuteURL, "/execute") + "/health"
	}
	return strings.TrimRight(w.ExecuteURL, "/") + "/health"
}

// StatusURL derives the per-job status URL for passive reconciliation by
// appending "/status/<jobID>" to the worker base (spec §4.4 "Worker-side
// status polling").
func (w WorkerEndpoint) StatusURL(jobID int64) string {
	base := strings.TrimSuffix(w.ExecuteURL, "/execute")
	return strings.TrimRight(base, "/") + "/status/" + strconv.FormatInt(jobID, 10)
}

// Directory tracks configured worker endpoints, health-probes them each
// dispatch cycle, and selects one via sticky round-robin (spec §4.3).
// Each endpoint additionally carries a circuit breaker (SPEC_FULL §4.3,
// Addition M): a breaker-open endpoint is excluded from the pool
// regardless of its last health probe result.
type Directory struct {
	endpoints []WorkerEndpoint
	client    *http.Client
	healthTimeout time.Duration

	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker

	breakerFailureThreshold uint32
}

// NewDirectory creates a Directory over endpoints. failureThreshold is
// the consecutive-failure count before a breaker opens
// (CIRCUIT_BREAKER_FAILURE_THRESHOLD, spec SPEC_FULL §6).
func NewDirectory(endpoints []WorkerEndpoint, healthTimeout time.Duration, failureThreshold uint32) *Directory {
	d := &Directory{
		endpoints:               endpoints,
		client:                  &http.Client{Timeout: healthTimeout},
		healthTimeout:           healthTimeout,
		breakers:                make(map[string]*gobreaker.CircuitBreaker),
		breakerFailureThreshold: failureThreshold,
	}
	for _, ep := range endpoints {
		d.breakers[ep.ExecuteURL] = newBreaker(ep.ExecuteURL, failureThreshold)
	}
	return d
}

func newBreaker(name string, failureThreshold uint32) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		Timeout: 30 * time.Second,
	})
}

// Breaker returns the circuit breaker guarding an endpoint's outbound
// calls, creating one if this endpoint wasn't in the original
// configured list (defensive; should not normally occur).
func (d *Directory) Breaker(executeURL string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.breakers[executeURL]
	if !ok {
		b = newBreaker(executeURL, d.breakerFailureThreshold)
		d.breakers[executeURL] = b
	}
	return b
}

// AvailablePool health-probes every configured endpoint and returns the
// subset that is both healthy (2xx within healthTimeout) and not
// breaker-open. Falls back to the full configured list if that pool is
// empty (spec §4.3). The probe is per-dispatch, never cached (spec §5).
func (d *Directory) AvailablePool(ctx context.Context) []WorkerEndpoint {
	if len(d.endpoints) == 0 {
		return nil
	}

	var mu sync.Mutex
	var pool []WorkerEndpoint
	var wg sync.WaitGroup

	for _, ep := range d.endpoints {
		wg.Add(1)
		go func(ep WorkerEndpoint) {
			defer wg.Done()
			if d.Breaker(ep.ExecuteURL).State() == gobreaker.StateOpen {
				return
			}
			if d.probeHealthy(ctx, ep) {
				mu.Lock()
				pool = append(pool, ep)
				mu.Unlock()
			}
		}(ep)
	}
	wg.Wait()

	if len(pool) == 0 {
		return d.endpoints
	}
	return pool
}

func (d *Directory) probeHealthy(ctx context.Context, ep WorkerEndpoint) bool {
	reqCtx, cancel := context.WithTimeout(ctx, d.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, ep.HealthURL(), nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Select deterministically picks one endpoint from pool via round-robin
// seeded by jobID modulo pool size (spec §4.3): repeated dispatches of
// the same job id are sticky, while overall load spreads across jobs.
func Select(pool []WorkerEndpoint, jobID int64) (WorkerEndpoint, bool) {
	if len(pool) == 0 {
		return WorkerEndpoint{}, false
	}
	idx := int(jobID % int64(len(pool)))
	if idx < 0 {
		idx += len(pool)
	}
	return pool[idx], true
}

// ValidateExecuteURL returns the error from parsing raw as a request URI,
// or nil when it parses. The WORKER_ENDPOINTS loading path does not call
// it.
func ValidateExecuteURL(raw string) error {
	_, err := url.ParseRequestURI(raw)
	return err
}
