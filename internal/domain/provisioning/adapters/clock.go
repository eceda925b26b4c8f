package adapters

import (
	"time"

	"github.com/sitesmith-tech/sitesmith/internal/domain/provisioning/ports"
)

// SystemClock implements the Clock port using wall-clock time in UTC.
type SystemClock struct{}

var _ ports.Clock = SystemClock{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
