package entitlements

import "testing"

func TestLimitsForTier(t *testing.T) {
	cases := []struct {
		tier     string
		wantTier string
		wantMax  int
	}{
		{"free", "free", 200},
		{"starter", "starter", 500},
		{"pro", "pro", 2000},
		{"", "free", 200},
		{"unknown", "free", 200},
	}
	for _, tc := range cases {
		got := LimitsForTier(tc.tier)
		if got.Tier != tc.wantTier {
			t.Fatalf("LimitsForTier(%q).Tier = %q, want %q", tc.tier, got.Tier, tc.wantTier)
		}
		if got.MaxMonthlyAppointments != tc.wantMax {
			t.Fatalf("LimitsForTier(%q).MaxMonthlyAppointments = %d, want %d", tc.tier, got.MaxMonthlyAppointments, tc.wantMax)
		}
		if got.MaxStaff <= 0 || got.MaxServices <= 0 {
			t.Fatalf("LimitsForTier(%q) has non-positive limits: %+v", tc.tier, got)
		}
	}
}
