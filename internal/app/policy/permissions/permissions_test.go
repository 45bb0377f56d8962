package permissions

import (
	"testing"
)

func TestAllowedForLowestReturnsFullScale(t *testing.T) {
	for _, tt := range []struct {
		name  string
		scale Scale
	}{
		{"org", OrgScale},
		{"project", ProjectScale},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.scale.AllowedFor(tt.scale[0])
			if len(got) != len(tt.scale) {
				t.Fatalf("AllowedFor(%q) returned %d levels, want %d", tt.scale[0], len(got), len(tt.scale))
			}
			for i, l := range tt.scale {
				if got[i] != l {
					t.Errorf("AllowedFor(%q)[%d] = %q, want %q", tt.scale[0], i, got[i], l)
				}
			}
		})
	}
}

func TestAllowedForHighestReturnsSingleton(t *testing.T) {
	top := OrgScale[len(OrgScale)-1]
	got := OrgScale.AllowedFor(top)
	if len(got) != 1 || got[0] != top {
		t.Errorf("AllowedFor(%q) = %v, want [%q]", top, got, top)
	}
}

func TestAllowedForUnknownLevel(t *testing.T) {
	if got := OrgScale.AllowedFor("deploy"); got != nil {
		t.Errorf("AllowedFor(unknown) = %v, want nil", got)
	}
	// "code" belongs to the project scale, not the organization scale.
	if got := OrgScale.AllowedFor(ProjectCode); got != nil {
		t.Errorf("AllowedFor(%q) on org scale = %v, want nil", ProjectCode, got)
	}
	// The owner sentinel is outside every scale.
	if got := ProjectScale.AllowedFor(Owner); got != nil {
		t.Errorf("AllowedFor(owner) = %v, want nil", got)
	}
}

// A holder of L1 satisfies requirements at or below L1's rank and nothing
// above it, for every pair on the scale.
func TestSatisfiesIsRankOrdered(t *testing.T) {
	for _, scale := range []Scale{OrgScale, ProjectScale} {
		for i, held := range scale {
			for j, required := range scale {
				want := i >= j
				if got := scale.Satisfies(held, required); got != want {
					t.Errorf("Satisfies(%q, %q) = %v, want %v", held, required, got, want)
				}
			}
		}
	}
}

func TestSatisfiesUnknownLevels(t *testing.T) {
	if OrgScale.Satisfies(OrgAdmin, "deploy") {
		t.Error("admin should not satisfy an unknown required level")
	}
	if OrgScale.Satisfies("deploy", OrgView) {
		t.Error("an unknown held level should satisfy nothing")
	}
	if OrgScale.Satisfies(Owner, OrgView) {
		t.Error("the owner sentinel is not a scale level; owner bypass happens before rank checks")
	}
}

func TestAllowedForReturnsFreshSlice(t *testing.T) {
	a := ProjectScale.AllowedFor(ProjectCode)
	a[0] = "mutated"
	b := ProjectScale.AllowedFor(ProjectCode)
	if b[0] != ProjectCode {
		t.Error("AllowedFor must not share backing storage between calls")
	}
}

func TestRank(t *testing.T) {
	for _, tt := range []struct {
		scale Scale
		level Level
		want  int
	}{
		{OrgScale, OrgView, 0},
		{OrgScale, OrgAdmin, 4},
		{ProjectScale, ProjectCode, 1},
		{ProjectScale, "bogus", -1},
	} {
		if got := tt.scale.Rank(tt.level); got != tt.want {
			t.Errorf("Rank(%q) = %d, want %d", tt.level, got, tt.want)
		}
	}
}
