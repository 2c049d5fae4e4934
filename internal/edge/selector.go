package edge

import (
	"context"
	"errors"
	"floatfetch/internal/utils"
	"fmt"
	"time"
)

// DefaultProbeTimeout bounds a single probe when Selector.Timeout is unset.
const DefaultProbeTimeout = 5 * time.Second

// ErrNoReachableCandidate is returned when no candidate answered a probe.
var ErrNoReachableCandidate = errors.New("no reachable edge candidate")

// Candidate is a content-delivery edge the operator may download from.
type Candidate struct {
	Host  string
	Label string
}

func (c Candidate) String() string {
	if c.Label == "" {
		return c.Host
	}
	return fmt.Sprintf("%s (%s)", c.Host, c.Label)
}

// Measurement is the outcome of probing one candidate. Err != nil means the
// candidate is treated as infinitely far away.
type Measurement struct {
	Candidate Candidate
	Latency   time.Duration
	Err       error
}

// Reachable reports whether the probe succeeded.
func (m Measurement) Reachable() bool {
	return m.Err == nil
}

// Prober measures the round-trip latency to host.
type Prober interface {
	Probe(ctx context.Context, host string) (time.Duration, error)
}

// Selector picks the lowest-latency candidate.
type Selector struct {
	Prober  Prober
	Timeout time.Duration
}

// NewSelector returns a selector with the default per-probe timeout.
func NewSelector(p Prober) *Selector {
	return &Selector{Prober: p, Timeout: DefaultProbeTimeout}
}

// Measure probes every candidate in order. Probes run one at a time so they
// do not compete for bandwidth; each gets its own timeout.
func (s *Selector) Measure(ctx context.Context, candidates []Candidate) []Measurement {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	measurements := make([]Measurement, 0, len(candidates))
	for _, candidate := range candidates {
		m := Measurement{Candidate: candidate}
		if err := ctx.Err(); err != nil {
			m.Err = err
			measurements = append(measurements, m)
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		latency, err := s.Prober.Probe(probeCtx, candidate.Host)
		cancel()

		if err != nil {
			m.Err = fmt.Errorf("probe %s: %w", candidate.Host, err)
			utils.Debug("Edge probe failed: %s: %v", candidate.Host, err)
		} else {
			m.Latency = latency
			utils.Debug("Edge probe: %s %s", candidate.Host, latency)
		}
		measurements = append(measurements, m)
	}
	return measurements
}

// Closest returns the reachable measurement with the strictly smallest
// latency; ties keep the earliest. With nothing reachable the error wraps
// ErrNoReachableCandidate and every probe error.
func Closest(measurements []Measurement) (Measurement, error) {
	best := -1
	var errs []error
	for i, m := range measurements {
		if m.Err != nil {
			errs = append(errs, m.Err)
			continue
		}
		if best == -1 || m.Latency < measurements[best].Latency {
			best = i
		}
	}
	if best == -1 {
		if len(errs) == 0 {
			return Measurement{}, fmt.Errorf("%w: no candidates", ErrNoReachableCandidate)
		}
		return Measurement{}, fmt.Errorf("%w: %w", ErrNoReachableCandidate, errors.Join(errs...))
	}
	return measurements[best], nil
}

// SelectClosest probes candidates and returns the closest one.
func (s *Selector) SelectClosest(ctx context.Context, candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, fmt.Errorf("%w: no candidates", ErrNoReachableCandidate)
	}
	best, err := Closest(s.Measure(ctx, candidates))
	if err != nil {
		return Candidate{}, err
	}
	return best.Candidate, nil
}
