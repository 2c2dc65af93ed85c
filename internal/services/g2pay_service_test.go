package services

import (
	"strings"
	"testing"
)

func TestComputeChecksumDeterministic(t *testing.T) {
	fields := map[string]string{
		"Status":         "APPROVED",
		"TransactionID":  "txn-1",
		"clientUniqueId": "order-123",
		"totalAmount":    "1500",
	}

	first := ComputeChecksum(fields, "secret")
	second := ComputeChecksum(fields, "secret")
	if first != second {
		t.Fatalf("checksum not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}

func TestComputeChecksumIgnoresSignatureField(t *testing.T) {
	fields := map[string]string{
		"Status":      "APPROVED",
		ChecksumField: "whatever",
		"totalAmount": "1500",
	}
	without := map[string]string{
		"Status":      "APPROVED",
		"totalAmount": "1500",
	}
	if ComputeChecksum(fields, "secret") != ComputeChecksum(without, "secret") {
		t.Fatal("signature field must be excluded from the digest")
	}
}

func TestComputeChecksumNormalizesLineEndings(t *testing.T) {
	variants := []string{"line1\r\nline2", "line1\rline2", "line1\nline2"}
	base := ComputeChecksum(map[string]string{"note": variants[0]}, "secret")
	for _, v := range variants[1:] {
		got := ComputeChecksum(map[string]string{"note": v}, "secret")
		if got != base {
			t.Fatalf("line-ending variant %q produced a different checksum", v)
		}
	}
}

func TestVerifyChecksum(t *testing.T) {
	svc := NewG2PayService("merchant", "secret", "https://pay.example/checkout")
	fields := map[string]string{
		"Status":         "APPROVED",
		"TransactionID":  "txn-1",
		"clientUniqueId": "order-123",
		"totalAmount":    "1500",
	}
	valid := ComputeChecksum(fields, "secret")

	if !svc.VerifyChecksum(fields, valid) {
		t.Fatal("valid signature rejected")
	}
	if !svc.VerifyChecksum(fields, strings.ToUpper(valid)) {
		t.Fatal("signature comparison must be case-insensitive on hex")
	}
	if svc.VerifyChecksum(fields, "") {
		t.Fatal("empty signature accepted")
	}

	// Any single-field mutation must invalidate the signature.
	for key := range fields {
		mutated := make(map[string]string, len(fields))
		for k, v := range fields {
			mutated[k] = v
		}
		mutated[key] = mutated[key] + "x"
		if svc.VerifyChecksum(mutated, valid) {
			t.Fatalf("mutated field %q still verified", key)
		}
	}

	// A mutated signature must not verify either.
	tampered := "0" + valid[1:]
	if tampered != valid && svc.VerifyChecksum(fields, tampered) {
		t.Fatal("tampered signature verified")
	}
}

func TestMapTransactionStatus(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{status: "APPROVED", want: OutcomeApproved},
		{status: "approved", want: OutcomeApproved},
		{status: " SUCCESS ", want: OutcomeApproved},
		{status: "DECLINED", want: OutcomeDeclined},
		{status: "ERROR", want: OutcomeError},
		{status: "FAIL", want: OutcomeError},
		{status: "PENDING", want: OutcomePending},
		{status: "garbage", want: OutcomeUnknown},
		{status: "", want: OutcomeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			if got := MapTransactionStatus(tc.status); got != tc.want {
				t.Fatalf("MapTransactionStatus(%q) = %q, want %q", tc.status, got, tc.want)
			}
		})
	}
}

func TestBuildCheckoutURL(t *testing.T) {
	svc := NewG2PayService("merchant-1", "secret", "https://pay.example/checkout/")
	url := svc.BuildCheckoutURL("order-123", 1500, "GBP", "https://shop.example/return/")

	if !strings.HasPrefix(url, "https://pay.example/checkout/") {
		t.Fatalf("unexpected prefix: %s", url)
	}
	if strings.Contains(strings.TrimPrefix(url, "https://pay.example/checkout/"), "/") {
		t.Fatalf("payload segment should be a single base64 token: %s", url)
	}
}
