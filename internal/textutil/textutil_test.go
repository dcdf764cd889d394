package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Family Videos 2024", "family_videos_2024"},
		{"  spaced  ", "spaced"},
		{"UPPER-case_ok", "upper-case_ok"},
		{"***", "unknown"},
		{"", "unknown"},
		{"héllo", "h_llo"},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/videos/my_vacation.video.mp4", "My Vacation Video"},
		{"beach-day 2024.mov", "Beach Day 2024"},
		{"", "Unknown"},
		{"....mp4", "Unknown"},
	}
	for _, tc := range cases {
		if got := DisplayTitle(tc.in); got != tc.want {
			t.Errorf("DisplayTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTernary(t *testing.T) {
	if got := Ternary(true, "a", "b"); got != "a" {
		t.Fatalf("Ternary(true) = %q", got)
	}
	if got := Ternary(false, 1, 2); got != 2 {
		t.Fatalf("Ternary(false) = %d", got)
	}
}
