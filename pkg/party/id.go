// Package party defines agent identities shared across the dispatcher,
// transport, and every protocol instance. The teacher repository threads a
// party.ID type through every protocol package (pkg/protocol, protocols/cmp,
// protocols/lss, ...) but its source was not present in the retrieval pack;
// this is authored fresh in the same spirit: a small comparable identity
// type plus an ordered-set helper, since the DCOP agents are simply
// integers 1..N rather than the teacher's opaque string identities.
package party

import "sort"

// ID identifies one of the N cooperating agents. Agents are numbered 1..N;
// 0 is never a valid agent id and is used as a sentinel.
type ID int

// None is the zero value, never a valid participant.
const None ID = 0

func (id ID) String() string {
	return itoa(int(id))
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Set is a small ordered collection of party IDs, used for participant
// lists and neighbor sets.
type Set []ID

// NewSet builds a Set from ids, sorted ascending and deduplicated.
func NewSet(ids ...ID) Set {
	m := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	out := make(Set, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether id is a member of the set.
func (s Set) Contains(id ID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Without returns a new Set with id removed.
func (s Set) Without(id ID) Set {
	out := make(Set, 0, len(s))
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Len is the number of participants, N.
func (s Set) Len() int {
	return len(s)
}

// Threshold returns floor(N/2), the reconstruction threshold used uniformly
// by every Shamir sharing in this module.
func (s Set) Threshold() int {
	return s.Len() / 2
}
