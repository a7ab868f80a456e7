// Package report renders the end-of-run terminal report: engine totals,
// per-thread counters, application distribution, and the server names of
// the flow records still tracked at the end of the run.
package report

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"

	"NetWarden/internal/engine"
	"NetWarden/internal/model"
)

// Print renders the full report for a finished run.
func Print(e *engine.Engine) {
	r := e.Report()

	pterm.DefaultSection.Println("Processing Summary")
	summary := pterm.TableData{
		{"Total packets", fmt.Sprintf("%d", r.Summary.TotalPackets)},
		{"Total bytes", fmt.Sprintf("%d", r.Summary.TotalBytes)},
		{"TCP packets", fmt.Sprintf("%d", r.Summary.TCPPackets)},
		{"UDP packets", fmt.Sprintf("%d", r.Summary.UDPPackets)},
		{"Forwarded", fmt.Sprintf("%d", r.Summary.Forwarded)},
		{"Dropped", fmt.Sprintf("%d", r.Summary.Dropped)},
		{"Malformed", fmt.Sprintf("%d", e.Stats().Malformed.Load())},
		{"Fragmented", fmt.Sprintf("%d", e.Stats().Fragmented.Load())},
	}
	pterm.DefaultTable.WithData(summary).Render()

	pterm.DefaultSection.Println("Thread Statistics")
	threads := pterm.TableData{{"Thread", "Packets"}}
	for i := range e.LoadBalancers() {
		key := fmt.Sprintf("lb%d", i)
		threads = append(threads, []string{key, fmt.Sprintf("%d dispatched", r.Threads.LoadBalancers[key])})
	}
	for i := range e.FastPaths() {
		key := fmt.Sprintf("fp%d", i)
		threads = append(threads, []string{key, fmt.Sprintf("%d processed", r.Threads.FastPaths[key])})
	}
	pterm.DefaultTable.WithHasHeader().WithData(threads).Render()

	printClassification(e, r)
}

func printClassification(e *engine.Engine, r *engine.Report) {
	pterm.DefaultSection.Println("Application Classification")

	type appCount struct {
		name  string
		count uint64
	}
	var apps []appCount
	for name, count := range r.Applications {
		apps = append(apps, appCount{name, count})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].count > apps[j].count })

	var bars []pterm.Bar
	for _, a := range apps {
		bars = append(bars, pterm.Bar{Label: a.name, Value: int(a.count)})
	}
	if len(bars) > 0 {
		pterm.DefaultBarChart.WithHorizontal().WithShowValue().WithBars(bars).Render()
	}

	names := collectServerNames(e)
	if len(names) == 0 {
		return
	}

	pterm.DefaultSection.Println("Detected Server Names")
	table := pterm.TableData{{"Server Name", "Application"}}
	for _, n := range names {
		table = append(table, []string{n.name, n.app.String()})
	}
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

type serverName struct {
	name string
	app  model.AppType
}

func collectServerNames(e *engine.Engine) []serverName {
	merged := make(map[string]model.AppType)
	for _, conn := range e.Connections() {
		if conn.ServerName != "" {
			merged[conn.ServerName] = conn.App
		}
	}

	out := make([]serverName, 0, len(merged))
	for name, app := range merged {
		out = append(out, serverName{name, app})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
