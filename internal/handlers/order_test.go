package handlers

import (
	"strings"
	"testing"
)

func TestGenerateOrderNumber(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		number, err := generateOrderNumber()
		if err != nil {
			t.Fatalf("generateOrderNumber: %v", err)
		}
		if !strings.HasPrefix(number, "WN-") {
			t.Fatalf("missing prefix: %q", number)
		}
		if len(number) != len("WN-")+10 {
			t.Fatalf("expected 10 hex chars after the prefix, got %q", number)
		}
		for _, r := range number[3:] {
			if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'F') {
				t.Fatalf("unexpected character %q in %q", r, number)
			}
		}
		if seen[number] {
			t.Fatalf("duplicate order number %q within 1000 draws", number)
		}
		seen[number] = true
	}
}
