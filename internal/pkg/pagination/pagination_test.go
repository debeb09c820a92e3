package pagination

import (
	"net/http/httptest"
	"testing"
)

func TestFromRequest(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=1000", MaxLimit, 0},
		{"?limit=-1&offset=-3", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}

	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/"+tc.query, nil)
		limit, offset := FromRequest(r)
		if limit != tc.wantLimit || offset != tc.wantOffset {
			t.Errorf("%q: got (%d, %d), want (%d, %d)", tc.query, limit, offset, tc.wantLimit, tc.wantOffset)
		}
	}
}
