// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *rs232.Statistics
	eventLog      []logEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	linkErr       error
	lastConfig    *rs232.ConfigFrame
	reports       map[string]*rs232.Report
}

// Messages
type tickMsg time.Time
type frameMsg decoded
type syncMsg struct {
	invalidBytes int
}
type linkErrorMsg struct {
	err error
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         rs232.NewStatistics(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		reports:       make(map[string]*rs232.Report),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d stray frames", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case linkErrorMsg:
		m.linkErr = msg.err
		m.addLogEntry(fmt.Sprintf("LINK ERROR: %v", msg.err), true)

	case frameMsg:
		d := decoded(msg)
		m.stats.Update(d.frame, d.err)
		m.trackFrame(d.frame)

		switch {
		case d.err != nil:
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", d.err), true)
		case d.isError():
			m.addLogEntry(strings.TrimSpace(strings.SplitN(rs232.FormatFrame(d.frame), "\n", 2)[0]), true)
		case m.showAll:
			m.addLogEntry(fmt.Sprintf("%s (valid)", d.frame.Kind()), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// trackFrame keeps the latest configuration and reports for display
func (m *model) trackFrame(f rs232.Frame) {
	switch v := f.(type) {
	case *rs232.ConfigFrame:
		m.lastConfig = v
	case *rs232.Report:
		m.reports[v.Code] = v
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("RXBRIDGE - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Mode: %s | 'r' resets, 'q' quits",
		m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkErr != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Link lost: %v", m.linkErr)))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d stray frames)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var errorPercent float64
	if m.stats.TotalFrames > 0 {
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Reports:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Reports)),
		statsLabelStyle.Render("Config:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.ConfigFrames)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Errors(), errorPercent)),
	))

	if m.stats.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d\n",
			headerStyle.Render("bad terminator"), m.stats.InvalidReports,
			headerStyle.Render("corrupt config"), m.stats.MalformedConfigs,
			headerStyle.Render("unexpected bytes"), m.stats.UnexpectedBytes,
		))
	}
	if m.stats.PowersaveMarkers > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Powersave:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.PowersaveMarkers))))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
		statsLabelStyle.Render("Running:"), statsValueStyle.Render(formatUptime(time.Since(m.stats.StartTime))),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Receiver section (only shown once something was heard)
	if m.lastConfig != nil || len(m.reports) > 0 {
		s.WriteString(statsLabelStyle.Render("Receiver:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderReceiver(m.lastConfig, m.reports, statsLabelStyle, statsValueStyle, errorStyle)))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.eventLog, logHeight, headerStyle, errorStyle, warningStyle)))

	return s.String()
}

// renderReceiver shows the last configuration and the stored reports by code
func renderReceiver(config *rs232.ConfigFrame, reports map[string]*rs232.Report, label, value, bad lipgloss.Style) string {
	var b strings.Builder
	if config != nil {
		b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			label.Render("Model:"), value.Render(config.Model),
			label.Render("Software:"), value.Render(config.Version),
			label.Render("State:"), value.Render(config.Readiness.String()),
		))
	}

	codes := make([]string, 0, len(reports))
	for code := range reports {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	line := make([]string, 0, len(codes))
	for _, code := range codes {
		r := reports[code]
		entry := fmt.Sprintf("%s=%s", code, r.Data)
		if r.Valid {
			line = append(line, value.Render(entry))
		} else {
			line = append(line, bad.Render(entry))
		}
	}
	if len(line) > 0 {
		b.WriteString(label.Render("Reports: "))
		b.WriteString(strings.Join(line, " "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderLog shows the newest height entries of log
func renderLog(log []logEntry, height int, header, bad, notice lipgloss.Style) string {
	if len(log) == 0 {
		return header.Render("  (no events yet)")
	}

	startIdx := len(log) - height
	if startIdx < 0 {
		startIdx = 0
	}

	var b strings.Builder
	for _, entry := range log[startIdx:] {
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			b.WriteString(fmt.Sprintf("%s %s\n", header.Render(timestamp), bad.Render("✗ "+entry.message)))
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n", header.Render(timestamp), notice.Render("ℹ "+entry.message)))
		}
	}
	return b.String()
}
