// Package detect implements the anomaly detectors over a linked OCEL
// snapshot: duplicate payments, lengthy approvals, and maverick buying. Each
// detector scans independently and emits raw candidates with type-specific
// features and evidence; scoring and identity are applied downstream.
package detect

import (
	"context"
	"sort"
	"time"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/ocel"
)

// Detector is one anomaly rule over the snapshot.
type Detector interface {
	Name() string
	Detect(ctx context.Context, snap *ocel.Snapshot) ([]contracts.Candidate, error)
}

// Suite returns the default detector set.
func Suite(approvalPercentile float64) []Detector {
	return []Detector{
		DuplicatePayment{},
		LengthyApproval{Percentile: approvalPercentile},
		MaverickBuying{},
	}
}

var tsLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTS parses a log timestamp. Unparsable values come back as the zero
// time, which orders before every real instant.
func ParseTS(ts string) time.Time {
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// HoursBetween returns the elapsed hours from start to end.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Seconds() / 3600.0
}

// Percentile returns the p-quantile (0..1) of values using linear
// interpolation between order statistics, or nil for an empty input.
func Percentile(values []float64, p float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	vals := make([]float64, len(values))
	copy(vals, values)
	sort.Float64s(vals)
	if p <= 0 {
		return &vals[0]
	}
	if p >= 1 {
		return &vals[len(vals)-1]
	}
	pos := p * float64(len(vals)-1)
	lower := int(pos)
	upper := lower + 1
	if upper > len(vals)-1 {
		upper = len(vals) - 1
	}
	if lower == upper {
		return &vals[lower]
	}
	frac := pos - float64(lower)
	v := vals[lower]*(1-frac) + vals[upper]*frac
	return &v
}

// eventRef is an (event id, raw timestamp) pair.
type eventRef struct {
	EventID string
	TS      string
}

// earlier reports whether a sorts strictly before b by parsed timestamp.
func earlier(a, b eventRef) bool {
	return ParseTS(a.TS).Before(ParseTS(b.TS))
}

// keepEarliest folds candidate into current, keeping the earlier of the two.
func keepEarliest(current *eventRef, candidate eventRef) *eventRef {
	if current == nil {
		c := candidate
		return &c
	}
	if earlier(candidate, *current) {
		c := candidate
		return &c
	}
	return current
}

// approvalChoice is an approval-complete event with the activity that
// produced it.
type approvalChoice struct {
	eventRef
	Activity string
}

// pickApprovalComplete selects the earliest approval-complete event from the
// labelled choices. Returns nil when none is present.
func pickApprovalComplete(choices []approvalChoice) *approvalChoice {
	var best *approvalChoice
	for i := range choices {
		if best == nil || earlier(choices[i].eventRef, best.eventRef) {
			c := choices[i]
			best = &c
		}
	}
	return best
}

// earliestByObject indexes the earliest event per object, restricted to
// objects of objType and events whose activity is in activities.
func earliestByObject(snap *ocel.Snapshot, objType string, activities map[string]bool) map[string]eventRef {
	out := map[string]eventRef{}
	for _, ev := range snap.Events() {
		if !activities[ev.Activity] {
			continue
		}
		for _, l := range snap.LinksByEvent(ev.ID) {
			if snap.ObjectType(l.ObjectID) != objType {
				continue
			}
			ref := eventRef{EventID: ev.ID, TS: ev.TS}
			if current, ok := out[l.ObjectID]; !ok || earlier(ref, current) {
				out[l.ObjectID] = ref
			}
		}
	}
	return out
}
