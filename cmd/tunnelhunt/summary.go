package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/velemoonkon/tunnelhunt/pkg/scanner"
	"github.com/velemoonkon/tunnelhunt/pkg/stats"
)

var (
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow, color.Bold)
)

// renderSummary prints one row per capture file and a totals footer
func renderSummary(w io.Writer, session *stats.Session) {
	failed := make(map[string]bool, len(session.Failed))
	for _, name := range session.Failed {
		failed[name] = true
	}

	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"File", "Packets", "Malicious", "Status"})
	t.SetAutoWrapText(false)
	t.SetRowLine(false)

	for _, name := range session.Filenames() {
		fs := session.Files[name]
		status := "ok"
		if failed[name] {
			status = "failed"
		}
		t.Append([]string{name, strconv.Itoa(fs.PacketsCount), strconv.Itoa(fs.MaliciousPacketsCount), status})
	}

	t.SetFooter([]string{
		"Total",
		strconv.Itoa(session.TotalPackets),
		strconv.Itoa(session.TotalMaliciousPackets),
		fmt.Sprintf("%.3fs, %d pkt/s", session.TotalTime, session.PacketsPerSecond),
	})
	t.Render()
}

// summaryLine is the final user-facing status of a run
func summaryLine(failures *scanner.TaskFailures) string {
	if failures == nil || len(failures.Failures) == 0 {
		return colorGreen.Sprint("run completed")
	}
	return colorYellow.Sprintf("run completed with %d file failures: %s",
		len(failures.Failures), strings.Join(failures.Files(), ", "))
}
