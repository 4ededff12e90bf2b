package ws

import (
	"net/http/httptest"
	"testing"
)

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"", nil, true},
		{"http://copy.example.com", nil, true}, // 同 host
		{"http://localhost:5173", nil, true},
		{"http://127.0.0.1:8080", nil, true},
		{"http://[::1]:8080", nil, true},
		{"https://evil.test", nil, false},
		{"http://localhost.evil.test", nil, false},
		{"null", nil, false},
		{"https://www.example.com", []string{"https://www.example.com/"}, true},
		{"https://evil.test", []string{"*"}, true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "http://copy.example.com/api/copy/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := originAllowed(r, tc.allowed); got != tc.want {
			t.Fatalf("originAllowed(%q, %v) = %v, want %v", tc.origin, tc.allowed, got, tc.want)
		}
	}
}
