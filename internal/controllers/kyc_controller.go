package controllers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/MAnasLatif/kyc/internal/config"
	"github.com/MAnasLatif/kyc/internal/services"
	"github.com/MAnasLatif/kyc/internal/shufti"
)

// KycController exposes the verification flow over HTTP.
type KycController struct {
	svc *services.KycService
	cfg *config.Config
}

func NewKycController(svc *services.KycService, cfg *config.Config) *KycController {
	return &KycController{svc: svc, cfg: cfg}
}

// CreateSession handles POST /kyc/session.
func (kc *KycController) CreateSession(c *gin.Context) {
	var input services.CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	session, err := kc.svc.GetOrCreateSession(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRunsLimitExceeded):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		case errors.Is(err, services.ErrProviderFailure):
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		default:
			logrus.WithError(err).Error("session creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"reference": session.Reference,
		"iframeUrl": session.IframeURL,
		"status":    session.Status,
		"runsCount": session.RunsCount,
	})
}

// Webhook handles POST /kyc/webhook. The provider retries callbacks that do
// not return 200, so once the record is stored this handler acknowledges
// even when the status update is skipped.
func (kc *KycController) Webhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unreadable body"})
		return
	}

	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	reference := firstString(body, "reference", "reference_id")
	if reference == "" {
		reference = "unknown"
	}

	signatureValid := true
	if kc.cfg.KYC.VerifySignatures {
		signatureValid = verifySignature(raw, c.GetHeader("Signature"), kc.cfg.Shufti.SecretKey)
	}

	if err := kc.svc.RecordWebhook(string(raw), signatureValid, reference); err != nil {
		logrus.WithError(err).Error("failed to store webhook")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if !signatureValid {
		logrus.WithField("reference", reference).Warn("webhook signature mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid signature"})
		return
	}

	event := firstString(body, "event", "verification_status")
	status := services.StatusFromEvent(event)

	log := logrus.WithFields(logrus.Fields{
		"reference": reference,
		"event":     event,
		"status":    status,
	})

	if reference != "unknown" {
		updated, err := kc.svc.UpdateStatus(reference, status)
		if err != nil {
			log.WithError(err).Error("failed to update session status")
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		if !updated {
			log.Warn("webhook for unknown session reference")
		}
	}

	log.Info("webhook processed")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Status handles GET /kyc/status/:reference, validating server-side against
// the provider.
func (kc *KycController) Status(c *gin.Context) {
	out, err := kc.svc.ValidateStatusServerSide(c.Request.Context(), c.Param("reference"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	httpStatus := http.StatusOK
	if !out.Success {
		httpStatus = http.StatusBadRequest
	}
	c.JSON(httpStatus, out)
}

// GetSession handles GET /kyc/session/:reference.
func (kc *KycController) GetSession(c *gin.Context) {
	session, err := kc.svc.GetSessionByReference(c.Param("reference"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": session})
}

// UserSessions handles GET /kyc/user/:userId/sessions.
func (kc *KycController) UserSessions(c *gin.Context) {
	sessions, err := kc.svc.GetUserSessions(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": sessions})
}

// GetWebhook handles GET /kyc/webhook/:reference.
func (kc *KycController) GetWebhook(c *gin.Context) {
	record, err := kc.svc.GetWebhookByReference(c.Param("reference"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Webhook not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "webhook": record})
}

// DebugExtract handles POST /kyc/debug/extract, running the verification
// data extractor over an arbitrary payload.
func (kc *KycController) DebugExtract(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": shufti.ExtractVerificationData(body)})
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// verifySignature checks the provider's callback signature: the hex SHA-256
// of the raw payload concatenated with the secret key.
func verifySignature(raw []byte, header, secret string) bool {
	if header == "" {
		return false
	}
	sum := sha256.Sum256(append(raw, []byte(secret)...))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(header)) == 1
}
