package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/pipeline"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/policy"
	"github.com/matzehuels/nacplan/pkg/store"
)

func sampleDevices(lvl string, n int) []device.Load {
	out := make([]device.Load, n)
	for i := range out {
		out[i] = device.Load{
			ID:        fmt.Sprintf("%s-%03d", strings.ReplaceAll(lvl, " ", ""), i),
			Level:     lvl,
			X:         float64(i),
			CurrentA:  0.1,
			StandbyA:  0.01,
			UnitLoads: 1,
			HasStrobe: true,
		}
	}
	return out
}

func samplePlan(t *testing.T) *plan.Plan {
	t.Helper()
	pol := policy.Defaults()
	devices := append(sampleDevices("Level 1", 40), sampleDevices("Level 2", 15)...)
	p, err := pipeline.Build(context.Background(), devices, pipeline.Options{Policy: &pol})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	p.Name = "sample"
	return p
}

func writeDevices(t *testing.T, dir string, devices []device.Load) string {
	t.Helper()
	data, err := json.Marshal(devices)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tower.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// isolate points the cache and plan history at temp dirs.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

// =============================================================================
// Helpers
// =============================================================================

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty defaults to json", "", []string{"json"}},
		{"single format", "svg", []string{"svg"}},
		{"multiple formats", "json,dot,svg", []string{"json", "dot", "svg"}},
		{"spaces and blanks", " dot , ,pdf", []string{"dot", "pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFormats(tt.input)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("parseFormats(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifacts := map[string][]byte{"json": []byte("{}"), "dot": []byte("digraph nac {}")}
	input := filepath.Join(dir, "tower.json")

	tests := []struct {
		name    string
		formats []string
		output  string
		want    []string
	}{
		{"default single", []string{"json"}, "", []string{filepath.Join(dir, "tower.plan.json")}},
		{"default multiple", []string{"json", "dot"}, "", []string{filepath.Join(dir, "tower.plan.json"), filepath.Join(dir, "tower.plan.dot")}},
		{"explicit single", []string{"dot"}, filepath.Join(dir, "out.gv"), []string{filepath.Join(dir, "out.gv")}},
		{"explicit base", []string{"json", "dot"}, filepath.Join(dir, "site.x"), []string{filepath.Join(dir, "site.json"), filepath.Join(dir, "site.dot")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := writeArtifacts(artifacts, tt.formats, input, tt.output)
			if err != nil {
				t.Fatalf("writeArtifacts() error: %v", err)
			}
			if strings.Join(paths, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("paths = %v, want %v", paths, tt.want)
			}
			for _, p := range paths {
				if _, err := os.Stat(p); err != nil {
					t.Errorf("%s not written: %v", p, err)
				}
			}
		})
	}

	if _, err := writeArtifacts(artifacts, []string{"svg"}, input, ""); err == nil {
		t.Error("writeArtifacts() should fail for a format that was not rendered")
	}
}

func TestValidateSections(t *testing.T) {
	if err := validateSections(allSections); err != nil {
		t.Errorf("validateSections(all) error: %v", err)
	}
	if err := validateSections([]string{"circuits", "bogus"}); err == nil {
		t.Error("validateSections should reject unknown sections")
	}
}

func TestLoadPolicy(t *testing.T) {
	p, source, err := loadPolicy("")
	if err != nil {
		t.Fatalf("loadPolicy(\"\") error: %v", err)
	}
	if source != "" || p.CurrentLimitA != policy.Defaults().CurrentLimitA {
		t.Errorf("loadPolicy(\"\") = %v from %q, want defaults", p.CurrentLimitA, source)
	}

	path := filepath.Join(t.TempDir(), "site.toml")
	if err := os.WriteFile(path, []byte("current_limit_a = 2.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, source, err = loadPolicy(path)
	if err != nil {
		t.Fatalf("loadPolicy(file) error: %v", err)
	}
	if source != path || p.CurrentLimitA != 2.5 {
		t.Errorf("loadPolicy(file) = %v from %q", p.CurrentLimitA, source)
	}

	if _, _, err := loadPolicy(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("loadPolicy(missing) should fail")
	}
}

func TestWritePolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nacplan.toml")
	if err := writePolicyFile(path, policy.Defaults(), false); err != nil {
		t.Fatalf("writePolicyFile() error: %v", err)
	}
	if err := writePolicyFile(path, policy.Defaults(), false); err == nil {
		t.Error("second write without force should fail")
	}
	if err := writePolicyFile(path, policy.Defaults(), true); err != nil {
		t.Errorf("write with force error: %v", err)
	}

	p, err := policy.Load(path)
	if err != nil {
		t.Fatalf("written policy does not load: %v", err)
	}
	if p.ULLimit != policy.Defaults().ULLimit {
		t.Errorf("ULLimit = %v, want default", p.ULLimit)
	}
}

// =============================================================================
// Tables
// =============================================================================

func TestTables(t *testing.T) {
	p := samplePlan(t)

	levels := levelsTable(p)
	for _, want := range []string{"Level", "Level 1", "Level 2", "Strategy"} {
		if !strings.Contains(levels, want) {
			t.Errorf("levels table missing %q:\n%s", want, levels)
		}
	}

	circuits := branchesTable(p.Branches, usablePercent(p), -1)
	for _, b := range p.Branches {
		if !strings.Contains(circuits, b.Label) {
			t.Errorf("circuits table missing %s", b.Label)
		}
	}

	supplies := suppliesTable(p, 0)
	if !strings.Contains(supplies, p.Supplies[0].Label) {
		t.Errorf("supplies table missing %s:\n%s", p.Supplies[0].Label, supplies)
	}
}

func TestBranchFlags(t *testing.T) {
	b := plan.Branch{Oversize: true, Island: true, RequiresIsolators: true, Isolators: 2}
	if got := branchFlags(b); got != "oversize island isolators:2" {
		t.Errorf("branchFlags() = %q", got)
	}
	if got := branchFlags(plan.Branch{}); got != "" {
		t.Errorf("branchFlags(plain) = %q, want empty", got)
	}
}

func TestWrapIDs(t *testing.T) {
	got := wrapIDs([]string{"aaaa", "bbbb", "cccc"}, 9)
	if got != "aaaa bbbb\ncccc" {
		t.Errorf("wrapIDs() = %q", got)
	}
}

// =============================================================================
// Inspector
// =============================================================================

func press(m InspectModel, keys ...tea.KeyMsg) InspectModel {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(InspectModel)
	}
	return m
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestInspectNavigation(t *testing.T) {
	p := samplePlan(t)
	m := NewInspectModel(p)

	if m.Screen != viewSupplies {
		t.Fatalf("initial screen = %v, want supplies", m.Screen)
	}

	m = press(m, keyUp, keyEnter)
	if m.Screen != viewCircuits {
		t.Fatalf("enter should open the circuits of the supply")
	}
	if m.Scope != p.Supplies[0].Label {
		t.Errorf("scope = %q, want %q", m.Scope, p.Supplies[0].Label)
	}
	if len(m.Circuits) != len(p.BranchesOf(p.Supplies[0].Label)) {
		t.Errorf("circuits = %d, want the supply's branches", len(m.Circuits))
	}

	m = press(m, keyDown, keyDown, keyDown, keyDown)
	if m.CircuitCursor != len(m.Circuits)-1 {
		t.Errorf("cursor = %d, should stop at the last circuit %d", m.CircuitCursor, len(m.Circuits)-1)
	}

	m = press(m, keyEnter)
	if !m.Detail {
		t.Error("enter on a circuit should show its devices")
	}
	if view := m.View(); !strings.Contains(view, m.Circuits[m.CircuitCursor].Devices[0]) {
		t.Error("detail view should list the circuit's devices")
	}

	m = press(m, keyEsc)
	if m.Screen != viewSupplies || m.Detail {
		t.Errorf("esc should return to supplies, got screen %v detail %v", m.Screen, m.Detail)
	}

	m = press(m, runeKey('a'))
	if m.Screen != viewCircuits || len(m.Circuits) != len(p.Branches) {
		t.Errorf("'a' should list all %d circuits, got %d", len(p.Branches), len(m.Circuits))
	}

	m = press(m, runeKey('d'))
	if m.Screen != viewDiagnostics {
		t.Errorf("'d' should open diagnostics")
	}
	m = press(m, keyEsc)
	if m.Screen != viewSupplies {
		t.Errorf("esc from diagnostics should return to supplies")
	}

	if _, cmd := m.Update(runeKey('q')); cmd == nil {
		t.Error("'q' should quit")
	}
}

func TestInspectWithoutSupplies(t *testing.T) {
	m := NewInspectModel(&plan.Plan{Name: "empty"})
	if m.Screen != viewCircuits {
		t.Errorf("plans without supplies should start at the circuit list")
	}
	if !strings.Contains(m.View(), "no circuits") {
		t.Errorf("view should say there are no circuits:\n%s", m.View())
	}
	m = press(m, runeKey('s'))
	if m.Screen != viewCircuits {
		t.Errorf("'s' without supplies should stay put")
	}
}

// =============================================================================
// Commands
// =============================================================================

func TestPlanCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	input := writeDevices(t, dir, sampleDevices("Level 1", 40))
	out := filepath.Join(dir, "result")

	if err := run(t, "plan", input, "-q", "-f", "json,dot", "-o", out); err != nil {
		t.Fatalf("plan error: %v", err)
	}

	p, err := plan.ReadFile(out + ".json")
	if err != nil {
		t.Fatalf("read plan output: %v", err)
	}
	if len(p.Branches) != 2 {
		t.Errorf("branches = %d, want 2", len(p.Branches))
	}
	if p.Name != "tower" {
		t.Errorf("name = %q, want the input file name", p.Name)
	}
	dot, err := os.ReadFile(out + ".dot")
	if err != nil {
		t.Fatalf("read dot output: %v", err)
	}
	if !strings.Contains(string(dot), "digraph nac") {
		t.Errorf("dot output missing graph header")
	}
}

func TestPlanCommandSaveAndReport(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	input := writeDevices(t, dir, sampleDevices("Level 1", 40))

	if err := run(t, "plan", input, "-q", "--save", "--no-cache"); err != nil {
		t.Fatalf("plan --save error: %v", err)
	}

	st, err := newPlanStore()
	if err != nil {
		t.Fatal(err)
	}
	list, err := st.List(context.Background(), store.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("history has %d plans, want 1", len(list))
	}
	id := list[0].ID

	// The JSON written next to the input carries the stored ID.
	p, err := plan.ReadFile(filepath.Join(dir, "tower.plan.json"))
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != id {
		t.Errorf("written plan ID = %q, want %q", p.ID, id)
	}

	if err := run(t, "report", id, "-s", "summary,circuits"); err != nil {
		t.Errorf("report by id error: %v", err)
	}
	if err := run(t, "report", filepath.Join(dir, "tower.plan.json")); err != nil {
		t.Errorf("report by file error: %v", err)
	}
	if err := run(t, "history", "list"); err != nil {
		t.Errorf("history list error: %v", err)
	}
	if err := run(t, "history", "delete", id); err != nil {
		t.Errorf("history delete error: %v", err)
	}
	if err := run(t, "report", id); err == nil {
		t.Error("report of a deleted plan should fail")
	}
}

func TestPlanCommandErrors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	input := writeDevices(t, dir, sampleDevices("Level 1", 5))

	tests := []struct {
		name string
		args []string
	}{
		{"missing input", []string{"plan", filepath.Join(dir, "absent.json")}},
		{"bad format", []string{"plan", input, "-f", "gif"}},
		{"missing policy", []string{"plan", input, "-p", filepath.Join(dir, "absent.toml")}},
		{"negative detection", []string{"plan", input, "--detection-devices", "-1"}},
		{"bad section", []string{"report", input, "-s", "bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestPlanCommandStrict(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	devices := sampleDevices("Level 1", 3)
	devices[0].CurrentA = 5.0 // above the hard circuit limit on its own

	input := writeDevices(t, dir, devices)
	if err := run(t, "plan", input, "-q"); err != nil {
		t.Fatalf("plan without --strict should succeed: %v", err)
	}
	if err := run(t, "plan", input, "-q", "--strict"); err == nil {
		t.Error("plan --strict should fail when the plan has errors")
	}
}

func TestPolicyInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.toml")
	if err := run(t, "policy", "init", path); err != nil {
		t.Fatalf("policy init error: %v", err)
	}
	if err := run(t, "policy", "init", path); err == nil {
		t.Error("policy init should refuse to overwrite")
	}
	if err := run(t, "policy", "show", "-p", path); err != nil {
		t.Errorf("policy show error: %v", err)
	}
}
