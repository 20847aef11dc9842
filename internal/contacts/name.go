package contacts

// Name is a resolved contact identity merged from one or more address-book rows.
type Name struct {
	First string
	Last  string
	// Full is First + " " + Last, or whichever half is present.
	Full string
	// Details carries the raw handle identifier when no address-book match exists,
	// and is stamped with the identifier even on a hit so the raw string survives.
	Details string
	// HandleIDs is the set of message-store handle rows collapsed into this identity.
	HandleIDs map[int]struct{}
}

// NameFromParts builds a Name from first/last name fields.
// Returns ok=false when both are empty, in which case the row is skipped entirely.
func NameFromParts(first, last string) (Name, bool) {
	if first == "" && last == "" {
		return Name{}, false
	}
	full := first
	if first != "" && last != "" {
		full += " "
	}
	full += last
	return Name{
		First:     first,
		Last:      last,
		Full:      full,
		HandleIDs: make(map[int]struct{}),
	}, true
}

// NameFromDetails builds a Name that only carries a raw identifier string.
func NameFromDetails(details string) Name {
	return Name{
		Details:   details,
		HandleIDs: make(map[int]struct{}),
	}
}

// Score counts the non-empty name halves: 0, 1 or 2.
func (n Name) Score() int {
	score := 0
	if n.First != "" {
		score++
	}
	if n.Last != "" {
		score++
	}
	return score
}

// DisplayName returns the full name, falling back to the raw details string.
func (n Name) DisplayName() string {
	if n.Full != "" {
		return n.Full
	}
	return n.Details
}

// clone returns a copy with its own HandleIDs set, so index entries
// registered under multiple keys do not share mutable state.
func (n Name) clone() Name {
	out := n
	out.HandleIDs = make(map[int]struct{}, len(n.HandleIDs))
	for id := range n.HandleIDs {
		out.HandleIDs[id] = struct{}{}
	}
	return out
}

// upsertBest inserts candidate under key, overwriting an existing entry only
// when the candidate scores strictly higher. Equal scores keep the first entry.
func upsertBest(m map[string]Name, key string, candidate Name) {
	existing, ok := m[key]
	if !ok || candidate.Score() > existing.Score() {
		m[key] = candidate.clone()
	}
}
