package handlers

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/example/winora/internal/services"
)

// signature and status rejection both happen before any database access, so
// these tests run against a handler with no backing store.
func newG2PayTestApp() *fiber.App {
	g2pay := services.NewG2PayService("merchant", "test-secret", "https://pay.example/checkout")
	handler := NewG2PayHandler(nil, g2pay, services.NewReconcileService(nil, nil, 0, 0))

	app := fiber.New()
	app.Post("/api/g2pay/callback", handler.Callback)
	app.Post("/api/g2pay/webhook", handler.Webhook)
	return app
}

func TestCallbackRejectsMissingSignature(t *testing.T) {
	app := newG2PayTestApp()

	form := url.Values{}
	form.Set("Status", "APPROVED")
	form.Set("TransactionID", "txn-1")
	form.Set("clientUniqueId", "order-123")
	form.Set("totalAmount", "1500")

	req := httptest.NewRequest("POST", "/api/g2pay/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCallbackRejectsInvalidSignature(t *testing.T) {
	app := newG2PayTestApp()

	fields := map[string]string{
		"Status":         "APPROVED",
		"TransactionID":  "txn-1",
		"clientUniqueId": "order-123",
		"totalAmount":    "1500",
	}
	valid := services.ComputeChecksum(fields, "test-secret")

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	// Tamper with a signed field after computing the checksum.
	form.Set("totalAmount", "1")
	form.Set(services.ChecksumField, valid)

	req := httptest.NewRequest("POST", "/api/g2pay/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCallbackRejectsUnrecognizedStatus(t *testing.T) {
	app := newG2PayTestApp()

	fields := map[string]string{
		"Status":         "SOMETHING_ELSE",
		"TransactionID":  "txn-1",
		"clientUniqueId": "order-123",
		"totalAmount":    "1500",
	}
	valid := services.ComputeChecksum(fields, "test-secret")

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set(services.ChecksumField, valid)

	req := httptest.NewRequest("POST", "/api/g2pay/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	app := newG2PayTestApp()

	body := `{"transactionStatus":"APPROVED","transactionId":"txn-1","clientUniqueId":"order-123","amount":1500}`
	req := httptest.NewRequest("POST", "/api/g2pay/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	app := newG2PayTestApp()

	fields := map[string]string{
		"transactionStatus": "APPROVED",
		"transactionId":     "txn-1",
		"clientUniqueId":    "order-123",
		"amount":            "1500",
	}
	valid := services.ComputeChecksum(fields, "test-secret")

	body := `{"transactionStatus":"APPROVED","transactionId":"txn-1","clientUniqueId":"order-456","amount":1500,"checksum":"` + valid + `"}`
	req := httptest.NewRequest("POST", "/api/g2pay/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
