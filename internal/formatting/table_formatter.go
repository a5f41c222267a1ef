package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"warden/internal/api"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

// FormatSnapshots renders one row per service.
func (f *TableFormatter) FormatSnapshots(snaps []api.StateSnapshot) error {
	if len(snaps) == 0 {
		return f.formatEmptyMessage("No services found")
	}

	t := f.createTable()
	t.AppendHeader(f.header("SERVICE", "TYPE", "STATE", "PID", "RESTARTS", "LAST EXIT", "SINCE", "REASON"))
	for _, s := range snaps {
		t.AppendRow(table.Row{
			s.Name,
			s.Type,
			f.state(s.State),
			pidString(s.PID),
			s.RestartCount,
			s.LastExit.String(),
			Age(s.Since, time.Now()),
			Truncate(s.Reason, 60),
		})
	}
	if !f.options.Quiet {
		t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(snaps)})
	}
	t.Render()
	return nil
}

// FormatSnapshot renders a single service as key/value pairs.
func (f *TableFormatter) FormatSnapshot(s api.StateSnapshot, stats *api.ProcessStats) error {
	t := f.createTable()
	t.AppendHeader(f.header("KEY", "VALUE"))
	t.AppendRows([]table.Row{
		{"Name", s.Name},
		{"ID", s.ID},
		{"Type", s.Type},
		{"State", f.state(s.State)},
		{"PID", pidString(s.PID)},
		{"Restarts", s.RestartCount},
		{"Last exit", s.LastExit.String()},
		{"Since", formatTime(s.Since)},
		{"Started", formatTime(s.StartedAt)},
		{"Reason", s.Reason},
	})
	if stats != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Process", stats.Name},
			{"Command", Truncate(stats.Cmdline, 80)},
			{"Status", stats.Status},
			{"CPU", fmt.Sprintf("%.1f%%", stats.CPUPercent)},
			{"Memory", HumanBytes(stats.RSS)},
			{"Threads", stats.NumThreads},
		})
	}
	t.Render()
	return nil
}

// FormatDefinitions renders the known definitions.
func (f *TableFormatter) FormatDefinitions(infos []api.ServiceInfo) error {
	if len(infos) == 0 {
		return f.formatEmptyMessage("No definitions found")
	}

	t := f.createTable()
	t.AppendHeader(f.header("SERVICE", "TYPE", "REQUIRES", "AFTER", "WANTS", "DESCRIPTION"))
	for _, i := range infos {
		t.AppendRow(table.Row{
			i.Name,
			i.Type,
			strings.Join(i.Requires, ","),
			strings.Join(i.After, ","),
			strings.Join(i.Wants, ","),
			Truncate(i.Description, 50),
		})
	}
	t.Render()
	return nil
}

// FormatLevels renders the boot order, one row per level.
func (f *TableFormatter) FormatLevels(levels [][]string) error {
	if len(levels) == 0 {
		return f.formatEmptyMessage("No services to start")
	}

	t := f.createTable()
	t.AppendHeader(f.header("LEVEL", "SERVICES"))
	for i, l := range levels {
		t.AppendRow(table.Row{i, strings.Join(l, " ")})
	}
	t.Render()
	return nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) { f.options = options }

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options { return f.options }

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.writer())
	if f.options.Quiet {
		t.SetStyle(table.StyleLight)
		t.Style().Options.DrawBorder = false
	} else {
		t.SetStyle(table.StyleRounded)
	}
	return t
}

func (f *TableFormatter) header(names ...string) table.Row {
	row := make(table.Row, len(names))
	for i, n := range names {
		if f.options.Color {
			row[i] = text.FgHiCyan.Sprint(n)
		} else {
			row[i] = n
		}
	}
	return row
}

func (f *TableFormatter) state(s api.ServiceState) string {
	if !f.options.Color {
		return string(s)
	}
	return StateColor(s).Sprint(string(s))
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(message string) error {
	if f.options.Color {
		message = text.FgYellow.Sprint(message)
	}
	_, err := fmt.Fprintln(f.options.writer(), message)
	return err
}

func pidString(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", pid)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
