package scene

import (
	"strings"
	"testing"
	"time"
)

func TestParsePolarizations(t *testing.T) {
	t.Parallel()

	p, err := ParsePolarizations([]string{"vv", " VH ", ""})
	if err != nil {
		t.Fatalf("ParsePolarizations: %v", err)
	}
	if !p.Has(VV) || !p.Has(VH) || p.Has(HH) || !p.Has(VV|VH) {
		t.Fatalf("unexpected set %v", p)
	}
	if p.String() != "VV+VH" {
		t.Fatalf("String = %q", p.String())
	}
	if _, err := ParsePolarizations([]string{"XX"}); err == nil {
		t.Fatalf("expected error for unknown polarization")
	}

	var none Polarization
	if !p.Has(none) || none.String() != "" {
		t.Fatalf("empty requirement should always match")
	}
}

func TestArtifactName(t *testing.T) {
	t.Parallel()

	const id = "S1A_IW_GRDH_1SDV_20150309T173017_20150309T173042_004967_006385_D3B1"
	s := Scene{ID: id, Sensor: "S1A", Mode: "IW", AcquiredAt: time.Date(2015, 3, 9, 17, 30, 17, 0, time.UTC)}
	want := id + "_20m_db.tif"
	if got := ArtifactName(s, 20, ScalingDB); got != want {
		t.Fatalf("ArtifactName = %q, want %q", got, want)
	}
	if ArtifactName(s, 20, ScalingDB) == ArtifactName(s, 20, ScalingLinear) {
		t.Fatalf("scaling must change the artifact name")
	}
	if ArtifactName(s, 10, ScalingDB) == ArtifactName(s, 20, ScalingDB) {
		t.Fatalf("resolution must change the artifact name")
	}

	// same datatake and start, different product and unique id
	slc := s
	slc.ID = "S1A_IW_SLC__1SDV_20150309T173017_20150309T173042_004967_006385_AAAA"
	slc.Product = "SLC"
	if ArtifactName(slc, 20, ScalingDB) == ArtifactName(s, 20, ScalingDB) {
		t.Fatalf("distinct scenes with one start time share an artifact")
	}
}

func TestArtifactName_UnsafeIDs(t *testing.T) {
	t.Parallel()

	cases := []string{"a/b", "a_b", "../x", "a b", ""}
	seen := map[string]string{}
	for _, id := range cases {
		name := ArtifactName(Scene{ID: id}, 20, ScalingDB)
		if strings.ContainsAny(name, `/\ `) || strings.Contains(name, "..") {
			t.Fatalf("ArtifactName(%q) = %q is not a plain file name", id, name)
		}
		if prev, ok := seen[name]; ok {
			t.Fatalf("ids %q and %q collide on %q", prev, id, name)
		}
		seen[name] = id
	}
}
