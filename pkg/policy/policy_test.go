package policy

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/nacplan/pkg/errors"
)

func TestDefaultsAreValid(t *testing.T) {
	p := Defaults()
	if err := p.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
	if p.Strategy != StrategyAuto {
		t.Errorf("Strategy = %q, want %q", p.Strategy, StrategyAuto)
	}
}

func TestUsableLimits(t *testing.T) {
	tests := []struct {
		name      string
		onCurrent bool
		onUL      bool
		wantA     float64
		wantUL    float64
	}{
		{"both", true, true, 2.4, 111.2},
		{"current only", true, false, 2.4, 139},
		{"ul only", false, true, 3.0, 111.2},
		{"neither", false, false, 3.0, 139},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Defaults()
			p.EnforceSpareOnCurrent = tt.onCurrent
			p.EnforceSpareOnUL = tt.onUL
			u := p.Usable()
			if math.Abs(u.CurrentA-tt.wantA) > 1e-9 {
				t.Errorf("CurrentA = %v, want %v", u.CurrentA, tt.wantA)
			}
			if math.Abs(u.UnitLoads-tt.wantUL) > 1e-9 {
				t.Errorf("UnitLoads = %v, want %v", u.UnitLoads, tt.wantUL)
			}
		})
	}
}

func TestWithinBoundary(t *testing.T) {
	sum := 0.0
	for i := 0; i < 8; i++ {
		sum += 0.3
	}
	if !Within(sum, Defaults().Usable().CurrentA) {
		t.Errorf("Within(%v, 2.4) = false, want true", sum)
	}
	if Within(2.4001, 2.4) {
		t.Error("Within(2.4001, 2.4) = true, want false")
	}
}

func TestLimitsFits(t *testing.T) {
	l := Limits{CurrentA: 2.4, UnitLoads: 100, Devices: 3}
	tests := []struct {
		name    string
		a, ul   float64
		devices int
		want    bool
	}{
		{"inside", 1, 10, 1, true},
		{"at limits", 2.4, 100, 3, true},
		{"current over", 2.5, 10, 1, false},
		{"ul over", 1, 101, 1, false},
		{"device cap", 1, 10, 4, false},
	}
	for _, tt := range tests {
		if got := l.Fits(tt.a, tt.ul, tt.devices); got != tt.want {
			t.Errorf("%s: Fits() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUtilizationZeroLimit(t *testing.T) {
	l := Limits{}
	if got := l.Utilization(0, 0); got != 0 {
		t.Errorf("Utilization(0,0) = %v, want 0", got)
	}
	if got := l.Utilization(0.1, 0); !math.IsInf(got, 1) {
		t.Errorf("Utilization(0.1,0) = %v, want +Inf", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"negative current", func(p *Policy) { p.CurrentLimitA = -1 }},
		{"nan ul", func(p *Policy) { p.ULLimit = math.NaN() }},
		{"spare one", func(p *Policy) { p.SpareFraction = 1 }},
		{"negative passes", func(p *Policy) { p.MaxBalancePasses = -1 }},
		{"unknown strategy", func(p *Policy) { p.Strategy = "random" }},
		{"no tiers", func(p *Policy) { p.CabinetTiers = nil }},
		{"unordered tiers", func(p *Policy) {
			p.CabinetTiers = []CabinetTier{{Name: "Big", Blocks: 16}, {Name: "Small", Blocks: 8}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Defaults()
			tt.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.IsInvalid(err) {
				t.Errorf("Validate() code = %v, want an INVALID_* code", errors.GetCode(err))
			}
		})
	}
}

func TestValidateAcceptsZeroLimits(t *testing.T) {
	p := Defaults()
	p.CurrentLimitA = 0
	p.ULLimit = 0
	p.SupplyCapacityA = 0
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateNil(t *testing.T) {
	var p *Policy
	if err := p.Validate(); !errors.Is(err, errors.ErrCodeInvalidPolicy) {
		t.Errorf("Validate(nil) = %v, want INVALID_POLICY", err)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyAuto, false},
		{"Best-Fit", StrategyBestFit, false},
		{"ffd", StrategyFirstFit, false},
		{"load-balance", StrategyLoadBalance, false},
		{"sequential", StrategySequential, false},
		{"greedy", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	p, err := Parse([]byte(`
current_limit_a = 2.0
spare_fraction = 0.1
strategy = "ffd"
cross_level_excluded = ["parking"]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.CurrentLimitA != 2.0 {
		t.Errorf("CurrentLimitA = %v, want 2.0", p.CurrentLimitA)
	}
	if p.ULLimit != 139 {
		t.Errorf("ULLimit = %v, want default 139", p.ULLimit)
	}
	if p.Strategy != StrategyFirstFit {
		t.Errorf("Strategy = %q, want %q", p.Strategy, StrategyFirstFit)
	}
	if !p.CrossLevelExcludes("Parking") {
		t.Error("CrossLevelExcludes(Parking) = false, want true")
	}
	if len(p.CabinetTiers) != 3 {
		t.Errorf("CabinetTiers = %d, want default 3", len(p.CabinetTiers))
	}
}

func TestParseReplacesTiers(t *testing.T) {
	p, err := Parse([]byte(`
[[cabinet_tiers]]
name = "Wall Box"
blocks = 4
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.CabinetTiers) != 1 || p.CabinetTiers[0].Name != "Wall Box" {
		t.Errorf("CabinetTiers = %+v, want single Wall Box tier", p.CabinetTiers)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("current_limit = 3.0\n"))
	if !errors.Is(err, errors.ErrCodeInvalidPolicy) {
		t.Fatalf("Parse() error = %v, want INVALID_POLICY", err)
	}
	if !strings.Contains(err.Error(), "current_limit") {
		t.Errorf("error %q should name the unknown key", err)
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("current_limit_a = ["))
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Parse() error = %v, want INVALID_FORMAT", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	want := Defaults()
	want.SpareFraction = 0.25
	want.CrossLevelExcluded = []string{"villa"}
	data, err := want.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v\n%s", err, data)
	}
	if got.SpareFraction != 0.25 || !got.CrossLevelExcludes("villa") {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestLoad(t *testing.T) {
	p, err := Load("")
	if err != nil || p.CurrentLimitA != 3.0 {
		t.Fatalf("Load(\"\") = %+v, %v; want defaults", p, err)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Load(missing) error = %v, want FILE_NOT_FOUND", err)
	}

	path := filepath.Join(t.TempDir(), "policy.toml")
	if err := os.WriteFile(path, []byte("ul_limit = 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.ULLimit != 100 {
		t.Errorf("ULLimit = %v, want 100", p.ULLimit)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := Defaults()
	c := p.Clone()
	c.CabinetTiers[0].Blocks = 99
	if p.CabinetTiers[0].Blocks == 99 {
		t.Error("Clone shares CabinetTiers with the original")
	}
}
