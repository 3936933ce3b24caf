package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func signWebhook(secret, msgId, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s.", msgId, timestamp)
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "whsec-test")
	body := []byte(`{"event":"research.completed","run_id":"run-1"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signWebhook("whsec-test", "msg_1", ts, body)

	if err := verifyWebhookSignature("msg_1", ts, body, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyWebhookSignature_MultipleEntries(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "whsec-test")
	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	good := signWebhook("whsec-test", "msg_2", ts, body)
	stale := signWebhook("old-secret", "msg_2", ts, body)

	// Rotation: the header can carry signatures for several secrets.
	if err := verifyWebhookSignature("msg_2", ts, body, stale+" "+good); err != nil {
		t.Fatalf("rotated signature set rejected: %v", err)
	}
}

func TestVerifyWebhookSignature_WrongSecret(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "whsec-test")
	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signWebhook("another-secret", "msg_3", ts, body)

	if err := verifyWebhookSignature("msg_3", ts, body, sig); err == nil {
		t.Fatal("signature from wrong secret accepted")
	}
}

func TestVerifyWebhookSignature_TamperedBody(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "whsec-test")
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signWebhook("whsec-test", "msg_4", ts, []byte(`{"run_id":"run-1"}`))

	if err := verifyWebhookSignature("msg_4", ts, []byte(`{"run_id":"run-2"}`), sig); err == nil {
		t.Fatal("tampered body accepted")
	}
}

func TestVerifyWebhookSignature_StaleTimestamp(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "whsec-test")
	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	sig := signWebhook("whsec-test", "msg_5", ts, body)

	if err := verifyWebhookSignature("msg_5", ts, body, sig); err == nil {
		t.Fatal("stale timestamp accepted")
	}
}

func TestVerifyWebhookSignature_MissingHeaders(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "whsec-test")
	if err := verifyWebhookSignature("", "", nil, ""); err == nil {
		t.Fatal("missing headers accepted")
	}
}

// An authenticated delivery with an event type this handler does not know is
// acknowledged and ignored; it must never be treated as a completion.
func TestResearchWebhook_UnknownEventAckedWithoutProcessing(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "whsec-test")
	gin.SetMode(gin.TestMode)

	body := []byte(`{"event":"research.enriched","run_id":"run-9"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signWebhook("whsec-test", "msg_9", ts, body)

	r := gin.New()
	// nil orchestrator: the unknown-event path must return before any
	// processing could dereference it
	r.POST("/webhooks/research", researchWebhookHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/research", bytes.NewReader(body))
	req.Header.Set("webhook-id", "msg_9")
	req.Header.Set("webhook-timestamp", ts)
	req.Header.Set("webhook-signature", sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("unknown event type: status %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestVerifyWebhookSignature_NoSecretConfigured(t *testing.T) {
	t.Setenv("RESEARCH_WEBHOOK_SECRET", "")
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	if err := verifyWebhookSignature("msg_6", ts, []byte(`{}`), "v1,AAAA"); err == nil {
		t.Fatal("verification must fail when no secret is configured")
	}
}
