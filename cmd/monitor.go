// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching and commanding the receiver",
	Long: `Run the gateway controller in a terminal UI.

Shows the session state, the latest report for every code and an event log.
Type a command and press Enter to send it:

  E1D 20     operation command E1D, wait for report 20
  0010       system command 0010, do not wait

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// monitorObserver forwards poll loop events to the TUI without blocking the loop
type monitorObserver struct {
	controller.NopObserver
	events chan tea.Msg
}

func (o *monitorObserver) post(msg tea.Msg) {
	select {
	case o.events <- msg:
	default:
	}
}

func (o *monitorObserver) FrameDecoded(f rs232.Frame) {
	o.post(frameMsg{frame: f})
}

func (o *monitorObserver) DecodeFailed(err error) {
	if !errors.Is(err, rs232.ErrInsufficientData) {
		o.post(frameMsg{err: err})
	}
}

func (o *monitorObserver) ListenersReleased(n int) {
	o.post(monitorEventMsg{message: fmt.Sprintf("No reply, released %d listener(s)", n), isError: true})
}

func (o *monitorObserver) CommandRejected(cmd *controller.PendingCommand, err error) {
	o.post(monitorEventMsg{message: fmt.Sprintf("Rejected %q: %v", cmd.Payload, err), isError: true})
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	obs := &monitorObserver{events: make(chan tea.Msg, 256)}
	ctrl := controller.New(conn, controller.Options{
		Logger:      zap.NewNop(),
		Observers:   []controller.Observer{obs},
		PortName:    connInfo,
		IdleCycles:  cfg.Controller.IdleCycles,
		InitBackoff: cfg.Controller.InitBackoff,
		OnTerminate: func(err error) {
			obs.post(linkErrorMsg{err: err})
		},
	})

	p := tea.NewProgram(initialMonitorModel(ctrl, connInfo))

	go func() {
		for {
			select {
			case msg := <-obs.events:
				p.Send(msg)
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() { _ = ctrl.Run(ctx) }()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

type monitorTickMsg time.Time

type monitorEventMsg struct {
	message string
	isError bool
}

type commandResultMsg struct {
	input  string
	code   string
	report *rs232.Report
	err    error
}

type monitorModel struct {
	ctrl          *controller.Controller
	connInfo      string
	input         textinput.Model
	status        controller.Status
	stats         *rs232.Statistics
	eventLog      []logEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
	linkErr       error
}

func initialMonitorModel(ctrl *controller.Controller, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "E1D 20"
	ti.Prompt = "> "
	ti.CharLimit = 8
	ti.Width = 12
	ti.Focus()

	return monitorModel{
		ctrl:          ctrl,
		connInfo:      connInfo,
		input:         ti,
		stats:         rs232.NewStatistics(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), textinput.Blink, tea.EnterAltScreen)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		prev := m.status
		m.status = m.ctrl.Status()
		if m.status.Ready && !prev.Ready {
			m.addLogEntry(fmt.Sprintf("Communication established with %s", m.status.Model), false)
		}
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case frameMsg:
		d := decoded(msg)
		m.stats.Update(d.frame, d.err)
		switch {
		case d.err != nil:
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", d.err), true)
		case d.isError():
			m.addLogEntry(strings.TrimSpace(strings.SplitN(rs232.FormatFrame(d.frame), "\n", 2)[0]), true)
		default:
			if _, ok := d.frame.(rs232.Powersave); ok {
				m.addLogEntry("Receiver in powersave, next command is sent twice", false)
			}
		}

	case monitorEventMsg:
		m.addLogEntry(msg.message, msg.isError)

	case linkErrorMsg:
		m.linkErr = msg.err
		m.addLogEntry(fmt.Sprintf("LINK ERROR: %v", msg.err), true)

	case commandResultMsg:
		switch {
		case msg.err != nil:
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.input, msg.err), true)
		case msg.code == "":
			m.addLogEntry(fmt.Sprintf("%s sent", msg.input), false)
		case msg.report == nil:
			m.addLogEntry(fmt.Sprintf("%s: no report %s", msg.input, msg.code), true)
		default:
			m.addLogEntry(fmt.Sprintf("%s: %s=%s", msg.input, msg.report.Code, msg.report.Data), false)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the command typed into the input
func (m monitorModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return m, nil
	}
	if m.linkErr != nil {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	fields := strings.Fields(text)
	payload := []byte(fields[0])
	if _, err := rs232.ClassifyCommand(payload); err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", fields[0], err), true)
		return m, nil
	}
	code := ""
	if len(fields) > 1 {
		code = fields[1]
	}

	ctrl := m.ctrl
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r, err := ctrl.Issue(ctx, payload, code)
		return commandResultMsg{input: text, code: code, report: r, err: err}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("RXBRIDGE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Enter sends, Esc quits", m.connInfo)))
	s.WriteString("\n\n")

	st := m.status
	var session strings.Builder
	state := valueStyle.Render(st.State.String())
	switch {
	case m.linkErr != nil:
		state = errorStyle.Render("link lost")
	case !st.Ready:
		state = warningStyle.Render(st.State.String())
	case st.State == controller.StateErrorRecovery:
		state = warningStyle.Render(st.State.String())
	}
	session.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Loop:"), state,
		labelStyle.Render("Receiver:"), valueStyle.Render(st.Readiness.String()),
		labelStyle.Render("Powersave:"), valueStyle.Render(fmt.Sprintf("%t", st.Powersave)),
	))
	session.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Model:"), valueStyle.Render(orDash(st.Model)),
		labelStyle.Render("Software:"), valueStyle.Render(orDash(st.Version)),
		labelStyle.Render("Waiting:"), valueStyle.Render(fmt.Sprintf("%d", st.Pending)),
		labelStyle.Render("Queued:"), valueStyle.Render(fmt.Sprintf("%d", st.Queued)),
	))
	s.WriteString(boxStyle.Render(session.String()))
	s.WriteString("\n\n")

	reports := make(map[string]*rs232.Report)
	for _, r := range m.ctrl.Results() {
		reports[r.Code] = r
	}
	if len(reports) > 0 {
		s.WriteString(boxStyle.Width(m.width - 4).Render(renderReceiver(nil, reports, labelStyle, valueStyle, errorStyle)))
		s.WriteString("\n\n")
	}

	s.WriteString(m.input.View())
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	logHeight := m.height - 16
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.eventLog, logHeight, headerStyle, errorStyle, warningStyle)))

	return s.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
