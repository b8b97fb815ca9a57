package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/polyinsider/whalewatch/internal/metrics"
)

// StatsDashboardView displays refresh health and dependency status.
type StatsDashboardView struct {
	textView *tview.TextView
}

// NewStatsDashboardView creates a new stats dashboard view.
func NewStatsDashboardView() *StatsDashboardView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Stats Dashboard ").SetBorder(true)

	return &StatsDashboardView{
		textView: textView,
	}
}

// Widget returns the tview primitive.
func (v *StatsDashboardView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the stats display.
func (v *StatsDashboardView) Update(snapshot metrics.Snapshot) {
	v.textView.Clear()
	fmt.Fprint(v.textView, renderStats(snapshot))
}

func renderStats(snapshot metrics.Snapshot) string {
	lastStatus := "[green]ok[-]"
	switch {
	case snapshot.Cycles == 0:
		lastStatus = "[gray]waiting[-]"
	case !snapshot.LastOK:
		lastStatus = "[red]failed[-]"
	case snapshot.UpstreamErr != "" || snapshot.StoreReadErr != "" || snapshot.StoreWriteErr != "":
		lastStatus = "[yellow]degraded[-]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `[yellow]System Status[-]
Uptime: %s
Last Cycle: %s (%s)
Last Success: %s

[yellow]Dependencies[-]
Upstream: %s
Store Read: %s
Store Write: %s

[yellow]Collection[-]
Whales Retained: %d
New Last Cycle: %d
New Total: %d
Cycle Time: %dms

[yellow]Cycles[-]
Total: %d
Degraded: %d
Failed: %d
`,
		formatDuration(snapshot.Uptime),
		lastStatus, formatTimeAgo(snapshot.LastRefresh),
		formatTimeAgo(snapshot.LastSuccess),
		dependencyStatus(snapshot.UpstreamErr),
		dependencyStatus(snapshot.StoreReadErr),
		dependencyStatus(snapshot.StoreWriteErr),
		snapshot.LastStats.TotalCount,
		snapshot.LastStats.NewCount,
		snapshot.NewTotal,
		snapshot.LastStats.DurationMs(),
		snapshot.Cycles,
		snapshot.Degraded,
		snapshot.Failures,
	)
	return b.String()
}

func dependencyStatus(errMsg string) string {
	if errMsg == "" {
		return "[green]ok[-]"
	}
	return "[red]" + tview.Escape(truncateText(errMsg, 40)) + "[-]"
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatTimeAgo formats a time as "X ago".
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	elapsed := time.Since(t)

	if elapsed < time.Minute {
		return fmt.Sprintf("%.0fs ago", elapsed.Seconds())
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%.0fm ago", elapsed.Minutes())
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%.0fh ago", elapsed.Hours())
	}
	return fmt.Sprintf("%.0fd ago", elapsed.Hours()/24)
}

// formatUSD formats a dollar amount with thousands separators.
func formatUSD(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// truncateAddress truncates a wallet address for display.
func truncateAddress(addr string) string {
	if addr == "" {
		return "unknown"
	}
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// truncateText shortens s to at most n runes.
func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
