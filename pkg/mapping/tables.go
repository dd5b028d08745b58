package mapping

import "sort"

// Registration is one address to announce to the 104 server.
type Registration struct {
	IOA  IOA
	Type PointType
}

// Tables holds the routing tables built from the mapping file. They are
// immutable after Build returns and are shared freely between the
// supervisors, the translation worker and the command router.
type Tables struct {
	// MMSToIOA maps a configured MMS path to its information object address.
	MMSToIOA map[string]IOA

	// IOAToCommandURI maps command addresses to the control object URI.
	IOAToCommandURI map[IOA]PointURI

	// IEDToIOAs lists the addresses that semantically belong to each IED;
	// the invalidation path enumerates it on supervisor fault.
	IEDToIOAs map[string][]IOA

	// Inverted marks addresses whose boolean polarity is flipped.
	Inverted map[IOA]bool

	// IOAType records the 104 type of every configured address.
	IOAType map[IOA]PointType

	// IEDDataGroups lists the monitoring URIs each supervisor registers.
	IEDDataGroups map[string][]string

	// Registrations lists every configured (address, type) pair in the
	// fixed section order of the builder, and in file order within a
	// section. The startup sequence replays it against the 104 server,
	// which enforces first-wins on colliding addresses.
	Registrations []Registration

	// matchOrder holds the MMSToIOA keys sorted longest-first then
	// lexicographic, so prefix matching is deterministic.
	matchOrder []string
}

func newTables() *Tables {
	return &Tables{
		MMSToIOA:        make(map[string]IOA),
		IOAToCommandURI: make(map[IOA]PointURI),
		IEDToIOAs:       make(map[string][]IOA),
		Inverted:        make(map[IOA]bool),
		IOAType:         make(map[IOA]PointType),
		IEDDataGroups:   make(map[string][]string),
	}
}

// freeze computes the deterministic prefix-match order. Called once at the
// end of Build; the tables are read-only afterwards.
func (t *Tables) freeze() {
	t.matchOrder = make([]string, 0, len(t.MMSToIOA))
	for path := range t.MMSToIOA {
		t.matchOrder = append(t.matchOrder, path)
	}
	sort.Slice(t.matchOrder, func(i, j int) bool {
		a, b := t.matchOrder[i], t.matchOrder[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
}

// MatchReported resolves a reported path from an IED to the first matching
// configured address. A config path matches when it starts with the
// reported path (an IED may report a parent structure fanning out to
// several leaves) and the address belongs to the reporting IED, which
// prevents path collisions across devices. Candidates are tried
// longest path first, then lexicographic.
func (t *Tables) MatchReported(ied, reportedPath string) (IOA, string, bool) {
	if reportedPath == "" {
		return 0, "", false
	}

	owned := t.IEDToIOAs[ied]
	if len(owned) == 0 {
		return 0, "", false
	}
	ownedSet := make(map[IOA]struct{}, len(owned))
	for _, ioa := range owned {
		ownedSet[ioa] = struct{}{}
	}

	for _, configPath := range t.matchOrder {
		if !hasPrefix(configPath, reportedPath) {
			continue
		}
		ioa := t.MMSToIOA[configPath]
		if _, ok := ownedSet[ioa]; ok {
			return ioa, configPath, true
		}
	}
	return 0, "", false
}

// Owned returns the addresses belonging to an IED, in registration order.
func (t *Tables) Owned(ied string) []IOA {
	return t.IEDToIOAs[ied]
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
