package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "explicit", query: "?page=3&limit=10", wantPage: 3, wantLimit: 10, wantOffset: 20},
		{name: "zero_page", query: "?page=0", wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "negative_limit", query: "?limit=-5", wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "garbage", query: "?page=abc&limit=xyz", wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "limit_capped", query: "?page=2&limit=500", wantPage: 2, wantLimit: 100, wantOffset: 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = ParsePagination(c)
				return nil
			})

			req := httptest.NewRequest("GET", "/"+tc.query, nil)
			if _, err := app.Test(req); err != nil {
				t.Fatalf("app.Test: %v", err)
			}

			if got.Page != tc.wantPage || got.Limit != tc.wantLimit || got.Offset != tc.wantOffset {
				t.Fatalf("got %+v, want page=%d limit=%d offset=%d", got, tc.wantPage, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
