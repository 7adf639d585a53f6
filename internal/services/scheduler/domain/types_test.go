package domain

import (
	"errors"
	"testing"
	"time"
)

func TestMaxValidityEnd(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	files := []ReferenceFile{
		{Name: "p1", Tier: TierPOE, ValidityEnd: t0},
		{Name: "r1", Tier: TierRES, ValidityEnd: t0.Add(48 * time.Hour)},
		{Name: "p2", Tier: TierPOE, ValidityEnd: t0.Add(24 * time.Hour)},
	}

	end, n, ok := MaxValidityEnd(files, TierPOE)
	if !ok || n != 2 || !end.Equal(t0.Add(24*time.Hour)) {
		t.Fatalf("POE = %v, %d, %v", end, n, ok)
	}
	if _, n, ok := MaxValidityEnd(files[1:2], TierPOE); ok || n != 0 {
		t.Fatalf("restituted only should report !ok, n=%d", n)
	}
}

func TestReport_TotalsAndAllFailed(t *testing.T) {
	t.Parallel()
	r := Report{Results: []SiteResult{
		{SiteID: "a", Accepted: 2, Failed: 1},
		{SiteID: "b", Skipped: true},
		{SiteID: "c", Err: errors.New("boom")},
	}}
	got := r.Totals()
	want := Totals{Sites: 3, OK: 1, Skipped: 1, Failed: 1, Accepted: 2, SceneFailures: 1}
	if got != want {
		t.Fatalf("Totals = %+v, want %+v", got, want)
	}
	if r.AllFailed() {
		t.Fatalf("partial success is not AllFailed")
	}
	if (Report{}).AllFailed() {
		t.Fatalf("empty report is not AllFailed")
	}
	if !(Report{Results: []SiteResult{{Err: errors.New("x")}}}).AllFailed() {
		t.Fatalf("single failure should be AllFailed")
	}
}

func TestClassify_LeaseLost(t *testing.T) {
	t.Parallel()
	cause := errors.New("context canceled")
	err := Classify(ErrLeaseLost, 0, cause, "site %s", "Alpha")
	if !errors.Is(err, ErrLeaseLost) || !errors.Is(err, cause) {
		t.Fatalf("Classify lost sentinel or cause: %v", err)
	}
}
