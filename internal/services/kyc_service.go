package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MAnasLatif/kyc/internal/config"
	"github.com/MAnasLatif/kyc/internal/models"
	"github.com/MAnasLatif/kyc/internal/repositories"
	"github.com/MAnasLatif/kyc/internal/runs"
	"github.com/MAnasLatif/kyc/internal/shufti"
)

// Sentinel errors surfaced to callers of the KYC service.
var (
	ErrRunsLimitExceeded = errors.New("kyc: runs limit exceeded")
	ErrProviderFailure   = errors.New("kyc: provider failure")
)

// AllowedDocumentTypes is the fixed descriptor stored on every session,
// matching the services requested from the provider.
const AllowedDocumentTypes = "id_card,passport,driving_license,face"

// KycService orchestrates session creation: admission against the run
// limit, the provider call, and persistence.
type KycService struct {
	sessions repositories.SessionRepository
	webhooks repositories.WebhookRepository
	users    repositories.UserRepository
	provider shufti.Provider
	counter  runs.Counter
	cfg      *config.Config

	// admission serializes session creation per user so two concurrent
	// requests for the same user cannot both pass the limit check.
	admission *keyedMutex
}

func NewKycService(
	sessions repositories.SessionRepository,
	webhooks repositories.WebhookRepository,
	users repositories.UserRepository,
	provider shufti.Provider,
	counter runs.Counter,
	cfg *config.Config,
) *KycService {
	return &KycService{
		sessions:  sessions,
		webhooks:  webhooks,
		users:     users,
		provider:  provider,
		counter:   counter,
		cfg:       cfg,
		admission: newKeyedMutex(),
	}
}

type CreateSessionInput struct {
	UserID  string `json:"userId" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
	Locale  string `json:"locale"`
	Country string `json:"country"`
}

// GetOrCreateSession returns the user's existing accepted session, or starts
// a new verification run. A new run is only counted once the provider has
// confirmed the session, so a failed provider call costs the user nothing.
func (s *KycService) GetOrCreateSession(ctx context.Context, input CreateSessionInput) (*models.KycSession, error) {
	unlock := s.admission.Lock(input.UserID)
	defer unlock()

	// 1) An accepted session is terminal for creation purposes.
	latest, err := s.sessions.LatestByUser(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("load latest session: %w", err)
	}
	if latest != nil && latest.Status == models.StatusAccepted {
		return latest, nil
	}

	// 2) Check the run limit before spending a provider call.
	currentRuns, err := s.counter.Get(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("read run count: %w", err)
	}
	if currentRuns >= s.cfg.KYC.MaxRuns {
		return nil, fmt.Errorf("%w: limit (%d) reached for user: %s",
			ErrRunsLimitExceeded, s.cfg.KYC.MaxRuns, input.UserID)
	}

	reference := newReference()

	locale := input.Locale
	if locale == "" {
		locale = s.cfg.KYC.DefaultLocale
	}

	result, err := s.provider.CreateSession(ctx, shufti.CreateSessionParams{
		Reference:   reference,
		Email:       input.Email,
		Language:    locale,
		Country:     input.Country,
		CallbackURL: s.cfg.KYC.CallbackURL,
		RedirectURL: s.redirectURLFor(reference),
		TTLSeconds:  s.cfg.KYC.SessionTTLSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: failed to create session: %s", ErrProviderFailure, result.Message)
	}

	iframeURL := result.VerificationURL
	if iframeURL == "" {
		iframeURL = result.RedirectURL
	}
	if iframeURL == "" {
		return nil, fmt.Errorf("%w: no verification URL returned, response: %s", ErrProviderFailure, result.Raw)
	}

	// 3) Count the run now that the provider confirmed the session.
	newRunCount, err := s.counter.Inc(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, runs.ErrLimitExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrRunsLimitExceeded, err)
		}
		return nil, fmt.Errorf("record run: %w", err)
	}

	var email *string
	if input.Email != "" {
		email = &input.Email
	}
	if _, err := s.users.Upsert(input.UserID, email); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	session := &models.KycSession{
		UserID:       input.UserID,
		Reference:    reference,
		Status:       models.StatusPending,
		IframeURL:    iframeURL,
		AllowedTypes: AllowedDocumentTypes,
		RunsCount:    newRunCount,
		TTLSeconds:   s.cfg.KYC.SessionTTLSeconds,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    input.UserID,
		"reference":  reference,
		"runs_count": newRunCount,
	}).Info("verification session created")

	return session, nil
}

// RecordWebhook appends an audit record for an inbound provider callback.
func (s *KycService) RecordWebhook(rawPayload string, signatureValid bool, reference string) error {
	return s.webhooks.Create(&models.KycWebhook{
		Reference:      reference,
		RawPayload:     rawPayload,
		SignatureValid: signatureValid,
	})
}

// UpdateStatus sets a session's status by reference. It reports whether a
// session was actually touched so webhook handling can skip unknown
// references without failing.
func (s *KycService) UpdateStatus(reference string, status models.KycStatus) (bool, error) {
	affected, err := s.sessions.UpdateStatus(reference, status)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ValidateStatusServerSide asks the provider directly for a reference's
// state, bypassing whatever the webhooks reported.
func (s *KycService) ValidateStatusServerSide(ctx context.Context, reference string) (*shufti.StatusResult, error) {
	return s.provider.GetStatus(ctx, reference)
}

func (s *KycService) GetSessionByReference(reference string) (*models.KycSession, error) {
	return s.sessions.GetByReference(reference)
}

func (s *KycService) GetUserSessions(userID string) ([]models.KycSession, error) {
	return s.sessions.ListByUser(userID)
}

func (s *KycService) GetWebhookByReference(reference string) (*models.KycWebhook, error) {
	return s.webhooks.LatestByReference(reference)
}

// ExpireStaleSessions marks pending sessions whose TTL has elapsed as
// expired and returns how many were touched.
func (s *KycService) ExpireStaleSessions() (int64, error) {
	return s.sessions.ExpireStale(time.Now().UTC())
}

func (s *KycService) RunsSnapshot(ctx context.Context) (map[string]int, error) {
	return s.counter.Snapshot(ctx)
}

func (s *KycService) ResetRuns(ctx context.Context, userID string) error {
	return s.counter.Reset(ctx, userID)
}

// redirectURLFor appends the reference to the configured redirect URL so
// the frontend can correlate the user coming back.
func (s *KycService) redirectURLFor(reference string) string {
	base := s.cfg.KYC.RedirectURL
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "reference=" + reference
}

// newReference generates a globally unique session reference. The timestamp
// keeps references sortable in logs; the UUID makes them unguessable.
func newReference() string {
	return fmt.Sprintf("ref-%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
