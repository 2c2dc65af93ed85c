package services

import "testing"

func TestGenerateReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := generateReferralCode()
		if err != nil {
			t.Fatalf("generateReferralCode: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("expected 8 base32 chars for %d random bytes, got %q", referralCodeBytes, code)
		}
		for _, r := range code {
			if !(r >= 'A' && r <= 'Z') && !(r >= '2' && r <= '7') {
				t.Fatalf("unexpected character %q in code %q", r, code)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q within 100 draws", code)
		}
		seen[code] = true
	}
}
