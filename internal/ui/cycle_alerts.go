package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/whalewatch/internal/engine"
)

// cycleEntry is one refresh cycle as shown in the alerts list.
type cycleEntry struct {
	at  time.Time
	res engine.Result
}

// CycleAlertsView lists recent refresh cycles, flagging degraded and failed
// ones.
type CycleAlertsView struct {
	list     *tview.List
	entries  []cycleEntry
	maxItems int
}

// NewCycleAlertsView creates a new cycle alerts view.
func NewCycleAlertsView() *CycleAlertsView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" Refresh Cycles ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	return &CycleAlertsView{
		list:     list,
		maxItems: 50,
	}
}

// Widget returns the tview primitive.
func (v *CycleAlertsView) Widget() tview.Primitive {
	return v.list
}

// Add records a cycle result.
func (v *CycleAlertsView) Add(at time.Time, res engine.Result) {
	v.entries = append([]cycleEntry{{at: at, res: res}}, v.entries...)

	if len(v.entries) > v.maxItems {
		v.entries = v.entries[:v.maxItems]
	}

	v.rebuildList()
}

// Refresh redraws the list.
func (v *CycleAlertsView) Refresh() {
	v.rebuildList()
}

func (v *CycleAlertsView) rebuildList() {
	v.list.Clear()

	if len(v.entries) == 0 {
		v.list.AddItem("No refresh cycles yet", "", 0, nil)
		return
	}

	failed := 0
	for _, e := range v.entries {
		primary, secondary := formatCycle(e)
		v.list.AddItem(primary, secondary, 0, nil)
		if !e.res.OK {
			failed++
		}
	}

	v.list.SetTitle(fmt.Sprintf(" Refresh Cycles (%d, %d failed) ", len(v.entries), failed))
}

// formatCycle formats a cycle for display.
func formatCycle(e cycleEntry) (string, string) {
	res := e.res
	timeStr := e.at.Format("15:04:05")

	var status string
	switch {
	case !res.OK:
		status = "[red]FAILED[-]"
	case res.Degraded():
		status = "[yellow]DEGRADED[-]"
	default:
		status = "[green]OK[-]"
	}

	primary := fmt.Sprintf("%s %s new=%d total=%d %dms",
		timeStr, status, res.Stats.NewCount, res.Stats.TotalCount, res.Stats.DurationMs())

	var secondary string
	if res.FetchErr != nil {
		secondary += "upstream: " + res.FetchErr.Error() + " "
	}
	if res.LoadErr != nil {
		secondary += "store read: " + res.LoadErr.Error() + " "
	}
	if res.SaveErr != nil {
		secondary += "store write: " + res.SaveErr.Error()
	}
	if secondary == "" && res.Stats.Persisted {
		secondary = "persisted"
	}

	return primary, secondary
}
