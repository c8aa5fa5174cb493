package services

import (
	"testing"

	"github.com/MAnasLatif/kyc/internal/models"
)

func TestStatusFromEvent(t *testing.T) {
	tests := []struct {
		event string
		want  models.KycStatus
	}{
		{"verification.accepted", models.StatusAccepted},
		{"ACCEPTED", models.StatusAccepted},
		{"request.ACCEPT.something", models.StatusAccepted},
		{"verification.declined", models.StatusDeclined},
		{"decline", models.StatusDeclined},
		{"DECLINING", models.StatusDeclined},
		{"review.pending", models.StatusReview},
		{"request.timeout.expired", models.StatusExpired},
		{"request.pending", models.StatusPending},
		{"", models.StatusPending},
		{"garbage text", models.StatusPending},
		// Precedence: accept is checked before declin, declin before review.
		{"accept-then-declined", models.StatusAccepted},
		{"declined-under-review", models.StatusDeclined},
		{"review-expired", models.StatusReview},
	}

	for _, tt := range tests {
		if got := StatusFromEvent(tt.event); got != tt.want {
			t.Errorf("StatusFromEvent(%q) = %q, want %q", tt.event, got, tt.want)
		}
	}
}
