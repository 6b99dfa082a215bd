package capture

import "fmt"

// DeletionStatus reports whether capture rows were removed out of band.
//
// Recall assigns ids sequentially and evicts the oldest rows under storage
// pressure, so the capture table behaves like a ring buffer whose oldest
// surviving id should sit exactly one below the persisted next-id counter.
// Anything else means rows between them are gone. This is a heuristic, not
// a proof.
type DeletionStatus struct {
	FirstLiveID int64 `json:"first_live_id"`
	NextID      int64 `json:"next_id"`
	Purged      bool  `json:"purged"`
}

// EvaluateDeletion applies the id-gap rule. An empty capture table
// (firstLiveID == 0) counts as purged; that is a convention carried over
// from the forensic workflow, not a logical necessity.
func EvaluateDeletion(firstLiveID, nextID int64) DeletionStatus {
	return DeletionStatus{
		FirstLiveID: firstLiveID,
		NextID:      nextID,
		Purged:      firstLiveID == 0 || nextID != firstLiveID+1,
	}
}

// Mark renders Purged as O (rows deleted) or X (none detected).
func (s DeletionStatus) Mark() string {
	if s.Purged {
		return "O"
	}
	return "X"
}

// StatusLine renders the one-line summary shown under capture listings.
func (s DeletionStatus) StatusLine() string {
	return fmt.Sprintf("deleted: %s, first ID: %d, next ID: %d", s.Mark(), s.FirstLiveID, s.NextID)
}
