package ecad

import (
	"fmt"
	"time"
)

// WindowPolicy picks the common [start, end] applied to every measurement of
// a station so their series line up index by index.
type WindowPolicy func(starts, ends []time.Time) (start, end time.Time)

// Window policy names accepted by ParseWindowPolicy.
const (
	PolicyMaxMax  = "max-max"
	PolicyOverlap = "overlap"
	PolicyUnion   = "union"
)

// MaxStartMaxEnd uses the latest start and the latest end.
func MaxStartMaxEnd(starts, ends []time.Time) (time.Time, time.Time) {
	return latest(starts), latest(ends)
}

// Overlap uses the latest start and the earliest end.
func Overlap(starts, ends []time.Time) (time.Time, time.Time) {
	return latest(starts), earliest(ends)
}

// Union uses the earliest start and the latest end.
func Union(starts, ends []time.Time) (time.Time, time.Time) {
	return earliest(starts), latest(ends)
}

// ParseWindowPolicy maps a policy name to its function.
func ParseWindowPolicy(name string) (WindowPolicy, error) {
	switch name {
	case PolicyMaxMax, "":
		return MaxStartMaxEnd, nil
	case PolicyOverlap:
		return Overlap, nil
	case PolicyUnion:
		return Union, nil
	default:
		return nil, fmt.Errorf("unknown window policy %q", name)
	}
}

func latest(ts []time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.IsZero() {
			continue
		}
		if out.IsZero() || t.After(out) {
			out = t
		}
	}
	return out
}

func earliest(ts []time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.IsZero() {
			continue
		}
		if out.IsZero() || t.Before(out) {
			out = t
		}
	}
	return out
}
