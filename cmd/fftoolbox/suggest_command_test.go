package main

import "testing"

func TestSuggestPicksPresetPerFile(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeMedia(t, "screencast.mp4")

	stdout, _, err := runCLI(t, []string{"suggest", input}, env.configPath)
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	// 600 MB of 1080p h264 is too big for quick and too small for
	// whatsapp, so the general default wins.
	requireContains(t, stdout, "screencast.mp4")
	requireContains(t, stdout, "web_1080p")
	requireContains(t, stdout, "general-purpose default")
}

func TestSuggestAllUnreadableFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, []string{"suggest", "/no/such/file.mp4"}, env.configPath)
	if err == nil {
		t.Fatal("expected suggest to fail when nothing is readable")
	}
	requireContains(t, err.Error(), "no readable sources")
	requireContains(t, stderr, "probe failed")
}
