package contacts

import "sort"

// BuildParticipantsMap resolves each message-store handle to a Name, keyed by
// canonical id. Handles without a canonical mapping are dropped. Handles are
// processed in ascending handle-id order, so when several handles collapse to
// one canonical id the lowest handle's identifier decides the resolution and
// the rest only contribute their ids to the HandleIDs set.
//
// The returned map is always keyed by canonical id; looking it up by raw
// handle id silently misses unless the caller translates through canonical
// first.
func (idx *Index) BuildParticipantsMap(handles map[int]string, canonical map[int]int) map[int]Name {
	handleIDs := make([]int, 0, len(handles))
	for id := range handles {
		handleIDs = append(handleIDs, id)
	}
	sort.Ints(handleIDs)

	result := make(map[int]Name)
	for _, handleID := range handleIDs {
		canonicalID, ok := canonical[handleID]
		if !ok {
			continue
		}

		if existing, seen := result[canonicalID]; seen {
			existing.HandleIDs[handleID] = struct{}{}
			result[canonicalID] = existing
			continue
		}

		identifier := handles[handleID]
		name, found := idx.Lookup(identifier)
		if !found {
			name = NameFromDetails(identifier)
		}
		// Keep the raw identifier for display fallback even on a hit.
		name.Details = identifier
		name.HandleIDs[handleID] = struct{}{}
		result[canonicalID] = name
	}
	return result
}
