package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/nacplan/pkg/plan"
)

var (
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// inspectView is the screen shown by InspectModel.
type inspectView int

const (
	viewSupplies inspectView = iota
	viewCircuits
	viewDiagnostics
)

// =============================================================================
// InspectModel - Interactive plan browser
// =============================================================================

// InspectModel is the bubbletea model for browsing a plan: supplies, the
// circuits they feed and the devices on each circuit.
type InspectModel struct {
	Plan *plan.Plan

	Screen        inspectView
	SupplyCursor  int
	CircuitCursor int
	// Circuits are the rows of the circuit view: one supply's circuits, or
	// all of them.
	Circuits []plan.Branch
	// Scope names what Circuits holds ("PS-01" or "all circuits").
	Scope string
	// Detail shows the device list of the circuit under the cursor.
	Detail bool
}

// NewInspectModel creates an inspector for p, starting at the supplies.
// Plans without supplies start at the circuit list.
func NewInspectModel(p *plan.Plan) InspectModel {
	m := InspectModel{Plan: p}
	if len(p.Supplies) == 0 {
		m = m.showAll()
	}
	return m
}

func (m InspectModel) Init() tea.Cmd {
	return nil
}

func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "a":
		return m.showAll(), nil
	case "d":
		m.Screen = viewDiagnostics
		return m, nil
	case "s":
		if len(m.Plan.Supplies) > 0 {
			m.Screen = viewSupplies
		}
		return m, nil
	}

	switch m.Screen {
	case viewSupplies:
		return m.updateSupplies(key), nil
	case viewCircuits:
		return m.updateCircuits(key), nil
	default:
		if key.String() == "esc" || key.String() == "backspace" {
			m.Screen = viewSupplies
			if len(m.Plan.Supplies) == 0 {
				m.Screen = viewCircuits
			}
		}
		return m, nil
	}
}

func (m InspectModel) updateSupplies(key tea.KeyMsg) InspectModel {
	switch key.String() {
	case "up", "k":
		if m.SupplyCursor > 0 {
			m.SupplyCursor--
		}
	case "down", "j":
		if m.SupplyCursor < len(m.Plan.Supplies)-1 {
			m.SupplyCursor++
		}
	case "enter", "right", "l":
		if len(m.Plan.Supplies) == 0 {
			return m
		}
		s := m.Plan.Supplies[m.SupplyCursor]
		m.Circuits = m.Plan.BranchesOf(s.Label)
		m.Scope = s.Label
		m.CircuitCursor = 0
		m.Detail = false
		m.Screen = viewCircuits
	}
	return m
}

func (m InspectModel) updateCircuits(key tea.KeyMsg) InspectModel {
	switch key.String() {
	case "up", "k":
		if m.CircuitCursor > 0 {
			m.CircuitCursor--
		}
	case "down", "j":
		if m.CircuitCursor < len(m.Circuits)-1 {
			m.CircuitCursor++
		}
	case "enter", "right", "l":
		m.Detail = !m.Detail
	case "esc", "backspace", "left", "h":
		if len(m.Plan.Supplies) > 0 {
			m.Screen = viewSupplies
			m.Detail = false
		}
	}
	return m
}

func (m InspectModel) showAll() InspectModel {
	m.Circuits = m.Plan.Branches
	m.Scope = "all circuits"
	m.CircuitCursor = 0
	m.Detail = false
	m.Screen = viewCircuits
	return m
}

func (m InspectModel) View() string {
	var b strings.Builder

	title := "Plan"
	if m.Plan.Name != "" {
		title += " " + m.Plan.Name
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%s · %d circuits · %d supplies",
		m.Plan.Cabinet.Tier, len(m.Plan.Branches), len(m.Plan.Supplies))))
	b.WriteString("\n\n")

	switch m.Screen {
	case viewSupplies:
		b.WriteString(StyleHighlight.Render("Power supplies"))
		b.WriteString("\n")
		b.WriteString(suppliesTable(m.Plan, m.SupplyCursor))
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ circuits  a all circuits  d diagnostics  q quit"))
	case viewCircuits:
		b.WriteString(StyleHighlight.Render("Circuits: " + m.Scope))
		b.WriteString("\n")
		if len(m.Circuits) == 0 {
			b.WriteString(listDimStyle.Render("  no circuits"))
		} else {
			b.WriteString(branchesTable(m.Circuits, usablePercent(m.Plan), m.CircuitCursor))
		}
		b.WriteString("\n")
		if m.Detail && m.CircuitCursor < len(m.Circuits) {
			b.WriteString(circuitDetail(m.Circuits[m.CircuitCursor]))
			b.WriteString("\n")
		}
		b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ devices  esc supplies  d diagnostics  q quit"))
	case viewDiagnostics:
		b.WriteString(StyleHighlight.Render("Diagnostics"))
		b.WriteString("\n")
		if len(m.Plan.Diagnostics) == 0 {
			b.WriteString(StyleSuccess.Render("  no findings"))
		} else {
			b.WriteString(diagnosticsTable(m.Plan))
		}
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render("esc back  s supplies  a all circuits  q quit"))
	}

	return b.String()
}

// circuitDetail renders the devices and loads of one circuit.
func circuitDetail(br plan.Branch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", StyleTitle.Render(br.Label), StyleDim.Render(br.Level))
	fmt.Fprintf(&b, "alarm %s · standby %s · %d UL · %.0f W\n",
		amps(br.CurrentA), amps(br.StandbyA), br.UnitLoads, br.WattageW)
	if br.Domain != "" {
		fmt.Fprintf(&b, "domain %s\n", br.Domain)
	}
	b.WriteString(wrapIDs(br.Devices, 72))
	return panelStyle.Render(b.String())
}

// wrapIDs joins ids with spaces, breaking lines at width.
func wrapIDs(ids []string, width int) string {
	var b strings.Builder
	line := 0
	for i, id := range ids {
		if i > 0 {
			if line+1+len(id) > width {
				b.WriteString("\n")
				line = 0
			} else {
				b.WriteString(" ")
				line++
			}
		}
		b.WriteString(id)
		line += len(id)
	}
	return b.String()
}
