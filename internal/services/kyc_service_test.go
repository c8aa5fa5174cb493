package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MAnasLatif/kyc/internal/config"
	"github.com/MAnasLatif/kyc/internal/models"
	"github.com/MAnasLatif/kyc/internal/runs"
	"github.com/MAnasLatif/kyc/internal/shufti"
)

type mockSessionRepo struct {
	createFunc         func(session *models.KycSession) error
	getByReferenceFunc func(reference string) (*models.KycSession, error)
	latestByUserFunc   func(userID string) (*models.KycSession, error)
	listByUserFunc     func(userID string) ([]models.KycSession, error)
	updateStatusFunc   func(reference string, status models.KycStatus) (int64, error)
	expireStaleFunc    func(now time.Time) (int64, error)

	createCalls int
}

func (m *mockSessionRepo) Create(session *models.KycSession) error {
	m.createCalls++
	if m.createFunc == nil {
		return errors.New("not implemented")
	}
	return m.createFunc(session)
}

func (m *mockSessionRepo) GetByReference(reference string) (*models.KycSession, error) {
	if m.getByReferenceFunc == nil {
		return nil, errors.New("not implemented")
	}
	return m.getByReferenceFunc(reference)
}

func (m *mockSessionRepo) LatestByUser(userID string) (*models.KycSession, error) {
	if m.latestByUserFunc == nil {
		return nil, errors.New("not implemented")
	}
	return m.latestByUserFunc(userID)
}

func (m *mockSessionRepo) ListByUser(userID string) ([]models.KycSession, error) {
	if m.listByUserFunc == nil {
		return nil, errors.New("not implemented")
	}
	return m.listByUserFunc(userID)
}

func (m *mockSessionRepo) UpdateStatus(reference string, status models.KycStatus) (int64, error) {
	if m.updateStatusFunc == nil {
		return 0, errors.New("not implemented")
	}
	return m.updateStatusFunc(reference, status)
}

func (m *mockSessionRepo) ExpireStale(now time.Time) (int64, error) {
	if m.expireStaleFunc == nil {
		return 0, errors.New("not implemented")
	}
	return m.expireStaleFunc(now)
}

type mockWebhookRepo struct {
	createFunc func(record *models.KycWebhook) error
	latestFunc func(reference string) (*models.KycWebhook, error)
}

func (m *mockWebhookRepo) Create(record *models.KycWebhook) error {
	if m.createFunc == nil {
		return errors.New("not implemented")
	}
	return m.createFunc(record)
}

func (m *mockWebhookRepo) LatestByReference(reference string) (*models.KycWebhook, error) {
	if m.latestFunc == nil {
		return nil, errors.New("not implemented")
	}
	return m.latestFunc(reference)
}

type mockUserRepo struct {
	upsertFunc  func(id string, email *string) (*models.User, error)
	upsertCalls int
}

func (m *mockUserRepo) Upsert(id string, email *string) (*models.User, error) {
	m.upsertCalls++
	if m.upsertFunc == nil {
		return nil, errors.New("not implemented")
	}
	return m.upsertFunc(id, email)
}

func (m *mockUserRepo) GetByID(id string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

type mockProvider struct {
	createFunc  func(ctx context.Context, params shufti.CreateSessionParams) (*shufti.CreateSessionResult, error)
	statusFunc  func(ctx context.Context, reference string) (*shufti.StatusResult, error)
	createCalls int
}

func (m *mockProvider) CreateSession(ctx context.Context, params shufti.CreateSessionParams) (*shufti.CreateSessionResult, error) {
	m.createCalls++
	if m.createFunc == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFunc(ctx, params)
}

func (m *mockProvider) GetStatus(ctx context.Context, reference string) (*shufti.StatusResult, error) {
	if m.statusFunc == nil {
		return nil, errors.New("not implemented")
	}
	return m.statusFunc(ctx, reference)
}

func testConfig(maxRuns int) *config.Config {
	return &config.Config{
		KYC: config.KYCConfig{
			CallbackURL:       "https://api.example/kyc/webhook",
			MaxRuns:           maxRuns,
			DefaultLocale:     "en",
			SessionTTLSeconds: 300,
		},
	}
}

func acceptingProvider() *mockProvider {
	return &mockProvider{
		createFunc: func(_ context.Context, params shufti.CreateSessionParams) (*shufti.CreateSessionResult, error) {
			return &shufti.CreateSessionResult{
				Success:         true,
				VerificationURL: "https://verify.example/" + params.Reference,
			}, nil
		},
	}
}

func TestGetOrCreateSessionReturnsExistingAcceptedSession(t *testing.T) {
	existing := &models.KycSession{
		UserID:    "user-1",
		Reference: "ref-existing",
		Status:    models.StatusAccepted,
	}
	sessions := &mockSessionRepo{
		latestByUserFunc: func(userID string) (*models.KycSession, error) {
			return existing, nil
		},
	}
	provider := &mockProvider{}
	svc := NewKycService(sessions, &mockWebhookRepo{}, &mockUserRepo{}, provider, runs.NewMemoryCounter(1), testConfig(1))

	got, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != existing {
		t.Fatalf("expected the existing session back, got %+v", got)
	}
	if provider.createCalls != 0 {
		t.Fatalf("expected no provider calls, got %d", provider.createCalls)
	}
	if sessions.createCalls != 0 {
		t.Fatalf("expected no session writes, got %d", sessions.createCalls)
	}
}

func TestGetOrCreateSessionRejectsWhenAtLimit(t *testing.T) {
	counter := runs.NewMemoryCounter(1)
	if _, err := counter.Inc(context.Background(), "user-1"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	sessions := &mockSessionRepo{
		latestByUserFunc: func(userID string) (*models.KycSession, error) {
			return &models.KycSession{Status: models.StatusDeclined}, nil
		},
	}
	provider := &mockProvider{}
	users := &mockUserRepo{}
	svc := NewKycService(sessions, &mockWebhookRepo{}, users, provider, counter, testConfig(1))

	_, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "user-1"})
	if !errors.Is(err, ErrRunsLimitExceeded) {
		t.Fatalf("expected ErrRunsLimitExceeded, got %v", err)
	}
	if provider.createCalls != 0 {
		t.Fatalf("expected no provider calls, got %d", provider.createCalls)
	}
	if sessions.createCalls != 0 || users.upsertCalls != 0 {
		t.Fatalf("expected no storage writes, got sessions=%d users=%d", sessions.createCalls, users.upsertCalls)
	}
}

func TestGetOrCreateSessionCreatesNewSession(t *testing.T) {
	var persisted *models.KycSession
	sessions := &mockSessionRepo{
		latestByUserFunc: func(userID string) (*models.KycSession, error) { return nil, nil },
		createFunc: func(session *models.KycSession) error {
			persisted = session
			return nil
		},
	}
	var upsertedEmail *string
	users := &mockUserRepo{
		upsertFunc: func(id string, email *string) (*models.User, error) {
			upsertedEmail = email
			return &models.User{ID: id, Email: email}, nil
		},
	}
	var gotParams shufti.CreateSessionParams
	provider := &mockProvider{
		createFunc: func(_ context.Context, params shufti.CreateSessionParams) (*shufti.CreateSessionResult, error) {
			gotParams = params
			return &shufti.CreateSessionResult{Success: true, VerificationURL: "https://verify.example/a"}, nil
		},
	}
	svc := NewKycService(sessions, &mockWebhookRepo{}, users, provider, runs.NewMemoryCounter(3), testConfig(3))

	got, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{
		UserID: "user-1",
		Email:  "jane@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != persisted {
		t.Fatalf("returned session is not the persisted one")
	}
	if !strings.HasPrefix(got.Reference, "ref-") {
		t.Errorf("reference %q missing ref- prefix", got.Reference)
	}
	if got.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if got.IframeURL != "https://verify.example/a" {
		t.Errorf("iframe URL = %q", got.IframeURL)
	}
	if got.AllowedTypes != AllowedDocumentTypes {
		t.Errorf("allowed types = %q", got.AllowedTypes)
	}
	if got.RunsCount != 1 {
		t.Errorf("runs count = %d, want 1", got.RunsCount)
	}
	if got.TTLSeconds != 300 {
		t.Errorf("ttl = %d, want 300", got.TTLSeconds)
	}

	if gotParams.Reference != got.Reference {
		t.Errorf("provider saw reference %q, session stored %q", gotParams.Reference, got.Reference)
	}
	if gotParams.Language != "en" {
		t.Errorf("language = %q, want default en", gotParams.Language)
	}
	if gotParams.CallbackURL != "https://api.example/kyc/webhook" {
		t.Errorf("callback URL = %q", gotParams.CallbackURL)
	}
	if upsertedEmail == nil || *upsertedEmail != "jane@example.com" {
		t.Errorf("upserted email = %v", upsertedEmail)
	}
}

func TestGetOrCreateSessionRedirectURLCarriesReference(t *testing.T) {
	cfg := testConfig(3)
	cfg.KYC.RedirectURL = "https://app.example/kyc/done"

	var gotParams shufti.CreateSessionParams
	provider := &mockProvider{
		createFunc: func(_ context.Context, params shufti.CreateSessionParams) (*shufti.CreateSessionResult, error) {
			gotParams = params
			return &shufti.CreateSessionResult{Success: true, VerificationURL: "https://v"}, nil
		},
	}
	sessions := &mockSessionRepo{
		latestByUserFunc: func(string) (*models.KycSession, error) { return nil, nil },
		createFunc:       func(*models.KycSession) error { return nil },
	}
	users := &mockUserRepo{
		upsertFunc: func(id string, email *string) (*models.User, error) { return &models.User{ID: id}, nil },
	}
	svc := NewKycService(sessions, &mockWebhookRepo{}, users, provider, runs.NewMemoryCounter(3), cfg)

	if _, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "u"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "https://app.example/kyc/done?reference=" + gotParams.Reference
	if gotParams.RedirectURL != want {
		t.Errorf("redirect URL = %q, want %q", gotParams.RedirectURL, want)
	}
}

func TestGetOrCreateSessionProviderFailureCostsNoRun(t *testing.T) {
	counter := runs.NewMemoryCounter(3)
	sessions := &mockSessionRepo{
		latestByUserFunc: func(string) (*models.KycSession, error) { return nil, nil },
	}
	provider := &mockProvider{
		createFunc: func(context.Context, shufti.CreateSessionParams) (*shufti.CreateSessionResult, error) {
			return &shufti.CreateSessionResult{Success: false, Message: "authorization keys are invalid"}, nil
		},
	}
	svc := NewKycService(sessions, &mockWebhookRepo{}, &mockUserRepo{}, provider, counter, testConfig(3))

	_, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "user-1"})
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "authorization keys are invalid") {
		t.Errorf("error should carry the provider message, got %v", err)
	}

	count, _ := counter.Get(context.Background(), "user-1")
	if count != 0 {
		t.Errorf("failed provider call must not consume a run, count = %d", count)
	}
	if sessions.createCalls != 0 {
		t.Errorf("expected no session writes, got %d", sessions.createCalls)
	}
}

func TestGetOrCreateSessionNoVerificationURL(t *testing.T) {
	sessions := &mockSessionRepo{
		latestByUserFunc: func(string) (*models.KycSession, error) { return nil, nil },
	}
	provider := &mockProvider{
		createFunc: func(context.Context, shufti.CreateSessionParams) (*shufti.CreateSessionResult, error) {
			return &shufti.CreateSessionResult{Success: true, Raw: []byte(`{}`)}, nil
		},
	}
	svc := NewKycService(sessions, &mockWebhookRepo{}, &mockUserRepo{}, provider, runs.NewMemoryCounter(3), testConfig(3))

	_, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "user-1"})
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "no verification URL") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetOrCreateSessionFallsBackToRedirectURL(t *testing.T) {
	sessions := &mockSessionRepo{
		latestByUserFunc: func(string) (*models.KycSession, error) { return nil, nil },
		createFunc:       func(*models.KycSession) error { return nil },
	}
	users := &mockUserRepo{
		upsertFunc: func(id string, email *string) (*models.User, error) { return &models.User{ID: id}, nil },
	}
	provider := &mockProvider{
		createFunc: func(context.Context, shufti.CreateSessionParams) (*shufti.CreateSessionResult, error) {
			return &shufti.CreateSessionResult{Success: true, RedirectURL: "https://fallback.example/v"}, nil
		},
	}
	svc := NewKycService(sessions, &mockWebhookRepo{}, users, provider, runs.NewMemoryCounter(3), testConfig(3))

	got, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IframeURL != "https://fallback.example/v" {
		t.Errorf("iframe URL = %q, want the redirect fallback", got.IframeURL)
	}
}

func TestGetOrCreateSessionRunsLimitEndToEnd(t *testing.T) {
	// max one run: the first call succeeds, the second is rejected before
	// any provider call because the first session stayed pending.
	var stored *models.KycSession
	sessions := &mockSessionRepo{
		latestByUserFunc: func(string) (*models.KycSession, error) { return stored, nil },
		createFunc: func(session *models.KycSession) error {
			stored = session
			return nil
		},
	}
	users := &mockUserRepo{
		upsertFunc: func(id string, email *string) (*models.User, error) { return &models.User{ID: id}, nil },
	}
	provider := acceptingProvider()
	svc := NewKycService(sessions, &mockWebhookRepo{}, users, provider, runs.NewMemoryCounter(1), testConfig(1))

	first, err := svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "user-1"})
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if first.Reference == "" {
		t.Fatal("first call returned no reference")
	}

	_, err = svc.GetOrCreateSession(context.Background(), CreateSessionInput{UserID: "user-1"})
	if !errors.Is(err, ErrRunsLimitExceeded) {
		t.Fatalf("expected ErrRunsLimitExceeded on second call, got %v", err)
	}
	if provider.createCalls != 1 {
		t.Errorf("provider called %d times, want 1", provider.createCalls)
	}
}

func TestUpdateStatusReportsUnknownReference(t *testing.T) {
	sessions := &mockSessionRepo{
		updateStatusFunc: func(reference string, status models.KycStatus) (int64, error) {
			return 0, nil
		},
	}
	svc := NewKycService(sessions, &mockWebhookRepo{}, &mockUserRepo{}, &mockProvider{}, runs.NewMemoryCounter(1), testConfig(1))

	updated, err := svc.UpdateStatus("no-such-ref", models.StatusAccepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Fatal("expected updated=false for unknown reference")
	}
}

func TestRecordWebhook(t *testing.T) {
	var saved *models.KycWebhook
	webhooks := &mockWebhookRepo{
		createFunc: func(record *models.KycWebhook) error {
			saved = record
			return nil
		},
	}
	svc := NewKycService(&mockSessionRepo{}, webhooks, &mockUserRepo{}, &mockProvider{}, runs.NewMemoryCounter(1), testConfig(1))

	if err := svc.RecordWebhook(`{"reference":"ref-1"}`, true, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved == nil || saved.Reference != "ref-1" || !saved.SignatureValid {
		t.Fatalf("webhook record = %+v", saved)
	}
}
