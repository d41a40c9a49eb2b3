package pipeline

import (
	"time"

	"github.com/voicecal/voicecal-go/internal/models"
)

// Input carries everything the extraction stage needs. Now is the
// reference instant all relative time language resolves against; it is
// fixed at pipeline invocation for determinism.
type Input struct {
	Transcript string
	Now        time.Time
	Labels     []models.LabelCandidate
}
