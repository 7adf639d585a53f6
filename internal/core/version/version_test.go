package version

import "testing"

func TestInfoDefaults(t *testing.T) {
	bi := Info("sarbatch-run")
	if bi.Service != "sarbatch-run" || bi.Version != "dev" || bi.Commit != "none" || bi.Date != "unknown" {
		t.Fatalf("unexpected defaults: %+v", bi)
	}
	if Tag() != "dev" {
		t.Fatalf("Tag = %q, want dev", Tag())
	}
}

func TestTagWithCommit(t *testing.T) {
	old := commit
	commit = "abc1234"
	t.Cleanup(func() { commit = old })

	if got := Tag(); got != "dev+abc1234" {
		t.Fatalf("Tag = %q", got)
	}
}
