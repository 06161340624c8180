package production

import (
	"testing"

	"feedmill-backend/internal/models"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to models.BatchStatus }{
		{models.BatchStatusPlanned, models.BatchStatusInProgress},
		{models.BatchStatusPlanned, models.BatchStatusCancelled},
		{models.BatchStatusInProgress, models.BatchStatusPaused},
		{models.BatchStatusInProgress, models.BatchStatusCompleted},
		{models.BatchStatusInProgress, models.BatchStatusCancelled},
		{models.BatchStatusPaused, models.BatchStatusInProgress},
		{models.BatchStatusPaused, models.BatchStatusCompleted},
		{models.BatchStatusPaused, models.BatchStatusCancelled},
	}
	for _, c := range allowed {
		if !canTransition(c.from, c.to) {
			t.Errorf("canTransition(%s, %s) = false, want true", c.from, c.to)
		}
	}

	denied := []struct{ from, to models.BatchStatus }{
		{models.BatchStatusPlanned, models.BatchStatusCompleted},
		{models.BatchStatusPlanned, models.BatchStatusPaused},
		{models.BatchStatusCompleted, models.BatchStatusInProgress},
		{models.BatchStatusCompleted, models.BatchStatusCancelled},
		{models.BatchStatusCancelled, models.BatchStatusInProgress},
		{models.BatchStatusCancelled, models.BatchStatusCompleted},
	}
	for _, c := range denied {
		if canTransition(c.from, c.to) {
			t.Errorf("canTransition(%s, %s) = true, want false", c.from, c.to)
		}
	}
}
