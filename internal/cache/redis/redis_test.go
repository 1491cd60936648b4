package redis

import (
	"testing"
	"time"
)

func TestKeysAreNamespaced(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{marketKey("1"), "polybet:market:1"},
		{marketSlugKey("nfl-dal-was"), "polybet:market:slug:nfl-dal-was"},
		{priceKey("1"), "polybet:price:1"},
		{bookKey("tok"), "polybet:book:tok"},
		{lockKey("scrape"), "polybet:lock:scrape"},
		{rateLimitKey("ip:1.2.3.4"), "polybet:ratelimit:ip:1.2.3.4"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestHasPattern(t *testing.T) {
	tests := map[string]bool{
		"markets.updated": false,
		"alerts.*":        true,
		"alerts.u?":       true,
		"alerts.[ab]":     true,
	}
	for ch, want := range tests {
		if got := hasPattern(ch); got != want {
			t.Errorf("hasPattern(%q) = %v, want %v", ch, got, want)
		}
	}
}

func TestParsePriceHash(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		vals   map[string]string
		wantOK bool
		price  float64
	}{
		{"complete", map[string]string{"outcome": "Yes", "price": "0.82", "ts": "1772366400000000000"}, true, 0.82},
		{"missing ts", map[string]string{"outcome": "No", "price": "0.4"}, true, 0.4},
		{"missing price", map[string]string{"outcome": "Yes"}, false, 0},
		{"bad price", map[string]string{"price": "abc"}, false, 0},
		{"empty", map[string]string{}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, ts, ok := parsePriceHash(tt.vals)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if mp.Price != tt.price || mp.Outcome != tt.vals["outcome"] {
				t.Errorf("price = %+v", mp)
			}
			if tt.vals["ts"] != "" && !ts.Equal(at) {
				t.Errorf("ts = %v, want %v", ts, at)
			}
		})
	}
}

func TestStreamPayload(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   string
		ok     bool
	}{
		{"string", map[string]any{"payload": `{"a":1}`}, `{"a":1}`, true},
		{"bytes", map[string]any{"payload": []byte("x")}, "x", true},
		{"missing", map[string]any{"other": "x"}, "", false},
		{"wrong type", map[string]any{"payload": 7}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := streamPayload(tt.values)
			if ok != tt.ok || string(got) != tt.want {
				t.Errorf("streamPayload() = %q, %v", got, ok)
			}
		})
	}
}
