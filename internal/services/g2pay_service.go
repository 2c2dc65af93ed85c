package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ProviderG2Pay identifies the gateway in payment events.
const ProviderG2Pay = "g2pay"

// ChecksumField is the callback field carrying the signature. It is excluded
// from the signed payload.
const ChecksumField = "responseChecksum"

// Gateway outcomes after status mapping.
const (
	OutcomeApproved = "approved"
	OutcomeDeclined = "declined"
	OutcomeError    = "error"
	OutcomePending  = "pending"
	OutcomeUnknown  = "unknown"
)

// G2PayService builds checkout URLs and verifies callback signatures.
type G2PayService struct {
	merchantID  string
	secretKey   string
	checkoutURL string
}

func NewG2PayService(merchantID, secretKey, checkoutURL string) *G2PayService {
	return &G2PayService{
		merchantID:  merchantID,
		secretKey:   secretKey,
		checkoutURL: checkoutURL,
	}
}

// ComputeChecksum produces the deterministic digest over callback fields.
// Fields are sorted by name, line endings in values are normalized to a single
// \n, the pairs are URL-encoded into one query string, and the shared secret
// is appended before hashing.
func ComputeChecksum(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == ChecksumField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(normalizeLineEndings(fields[k])))
	}
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum compares the received signature against the computed one in
// constant time. An empty signature never verifies.
func (s *G2PayService) VerifyChecksum(fields map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	expected := ComputeChecksum(fields, s.secretKey)
	received := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

// MapTransactionStatus maps the gateway's status vocabulary onto internal
// outcomes. Both the form callback's Status and the JSON webhook's
// transactionStatus use the same vocabulary.
func MapTransactionStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "APPROVED", "SUCCESS", "OK":
		return OutcomeApproved
	case "DECLINED", "DECLINE":
		return OutcomeDeclined
	case "ERROR", "FAIL", "FAILED":
		return OutcomeError
	case "PENDING":
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}

// BuildCheckoutURL returns the hosted-payment-page URL for a pending order.
// Amount is in minor units; the gateway expects the payload base64-encoded.
func (s *G2PayService) BuildCheckoutURL(orderRef string, amount int64, currency, returnURL string) string {
	payload := fmt.Sprintf("m=%s;ref=%s;a=%d;cur=%s;r=%s",
		s.merchantID, orderRef, amount, currency, strings.TrimRight(returnURL, "/"))
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	return strings.TrimRight(s.checkoutURL, "/") + "/" + encoded
}

func normalizeLineEndings(v string) string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	return strings.ReplaceAll(v, "\r", "\n")
}
