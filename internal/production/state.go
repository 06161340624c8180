package production

import "feedmill-backend/internal/models"

// transitions is the closed state table for a production batch. Anything not
// listed here is rejected with a StateError; there are no implicit moves.
//
//	planned -> in_progress | cancelled
//	in_progress -> paused | completed | cancelled
//	paused -> in_progress | completed | cancelled
//	completed, cancelled -> (terminal)
var transitions = map[models.BatchStatus][]models.BatchStatus{
	models.BatchStatusPlanned:    {models.BatchStatusInProgress, models.BatchStatusCancelled},
	models.BatchStatusInProgress: {models.BatchStatusPaused, models.BatchStatusCompleted, models.BatchStatusCancelled},
	models.BatchStatusPaused:     {models.BatchStatusInProgress, models.BatchStatusCompleted, models.BatchStatusCancelled},
}

func canTransition(from, to models.BatchStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
