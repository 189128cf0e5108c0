package app

import (
	"testing"

	"github.com/reliefhq/relief/internal/config"
)

func TestProvideGenLimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		limit     float64
		burst     int
		wantNil   bool
		wantBurst int
	}{
		{name: "disabled by default", limit: 0, burst: 1, wantNil: true},
		{name: "negative disables", limit: -1, burst: 5, wantNil: true},
		{name: "enabled", limit: 2.5, burst: 4, wantBurst: 4},
		{name: "burst floored to one", limit: 1, burst: 0, wantBurst: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{GenRateLimit: tt.limit, GenRateBurst: tt.burst}
			lim := provideGenLimiter(cfg)
			if tt.wantNil {
				if lim != nil {
					t.Fatalf("provideGenLimiter() = %v, want nil", lim)
				}
				return
			}
			if lim == nil {
				t.Fatal("provideGenLimiter() = nil, want limiter")
			}
			if got := lim.Burst(); got != tt.wantBurst {
				t.Errorf("Burst() = %d, want %d", got, tt.wantBurst)
			}
			if got := float64(lim.Limit()); got != tt.limit {
				t.Errorf("Limit() = %v, want %v", got, tt.limit)
			}
		})
	}
}
