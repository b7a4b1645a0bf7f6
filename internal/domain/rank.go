package domain

import "strconv"

// Rank is an optional priority index. The zero value is unranked.
type Rank struct {
	Value int
	OK    bool
}

// Ranked returns a present rank with value i.
func Ranked(i int) Rank {
	return Rank{Value: i, OK: true}
}

// RankIn returns the index of code in preference, or an unranked Rank.
func RankIn(preference []string, code string) Rank {
	for i, c := range preference {
		if c == code {
			return Ranked(i)
		}
	}
	return Rank{}
}

// RankFromPtr converts a nullable column value.
func RankFromPtr(p *int) Rank {
	if p == nil {
		return Rank{}
	}
	return Ranked(*p)
}

// Ptr returns the rank as a nullable value.
func (r Rank) Ptr() *int {
	if !r.OK {
		return nil
	}
	v := r.Value
	return &v
}

// Beats reports whether r should displace other. An unranked r never wins;
// a ranked r beats an unranked other or a strictly higher index.
func (r Rank) Beats(other Rank) bool {
	if !r.OK {
		return false
	}
	if !other.OK {
		return true
	}
	return r.Value < other.Value
}

func (r Rank) String() string {
	if !r.OK {
		return "unranked"
	}
	return strconv.Itoa(r.Value)
}
