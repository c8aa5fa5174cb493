package services

import (
	"strings"

	"github.com/MAnasLatif/kyc/internal/models"
)

// StatusFromEvent maps a free-text provider event to a session status.
// Matching is case-insensitive substring and the order of the checks is
// load-bearing: an event naming several outcomes resolves to the first
// keyword found. Anything unrecognized, including "", stays pending.
func StatusFromEvent(event string) models.KycStatus {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "accept"):
		return models.StatusAccepted
	case strings.Contains(e, "declin"):
		return models.StatusDeclined
	case strings.Contains(e, "review"):
		return models.StatusReview
	case strings.Contains(e, "expired"):
		return models.StatusExpired
	default:
		return models.StatusPending
	}
}
