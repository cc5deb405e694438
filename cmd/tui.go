// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *vallox.Statistics
	cache         *vallox.Cache
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  uint64
	width         int
	height        int
	quitting      bool
	closed        bool
}

// Messages
type tickMsg time.Time
type busEventMsg busEvent
type busClosedMsg struct {
	err error
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         vallox.NewStatistics(),
		cache:         vallox.NewCache(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
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
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case busClosedMsg:
		m.closed = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", false)
		}

	case busEventMsg:
		m.applyEvent(busEvent(msg))
	}

	return m, nil
}

// applyEvent folds one decoder result into the model
func (m *model) applyEvent(ev busEvent) {
	if ev.stats != nil {
		m.stats = ev.stats
	}

	if ev.synced {
		m.synchronized = true
		m.invalidBytes = ev.skipped
		if ev.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", ev.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	for _, e := range ev.errs {
		m.addLogEntry("DECODE ERROR: "+e, true)
	}

	if ev.frame == nil {
		return
	}
	f := *ev.frame
	if !f.IsPoll() {
		m.cache.Apply(f.Variable, f.Value)
	}

	name := vallox.FormatVariable(f.Variable)
	if len(ev.validation) > 0 {
		for _, err := range ev.validation {
			m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
		}
	} else if m.showAll {
		if f.IsPoll() {
			m.addLogEntry(fmt.Sprintf("POLL %s", vallox.FormatVariable(f.Value)), false)
		} else {
			m.addLogEntry(fmt.Sprintf("%s =%s", name, vallox.FormatValue(f.Variable, f.Value)), false)
		}
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// TUI styles shared by error_detection and control
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("VALLOSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	if !m.cache.Updated().IsZero() {
		s.WriteString(statsLabelStyle.Render("Unit State:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderCache(m.cache)))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.errorLog, m.height-22)))

	return s.String()
}

// renderStats renders the counters box
func renderStats(stats *vallox.Statistics) string {
	stats.CalculateRates()
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(stats.Errors()) * 100.0 / float64(stats.TotalFrames)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.Errors(), errorPercent)),
	))

	if stats.ChecksumErrors > 0 || stats.AddressRejects > 0 || stats.DecodeErrors > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", stats.ChecksumErrors)),
			statsLabelStyle.Render("Address:"), errorStyle.Render(fmt.Sprintf("%d", stats.AddressRejects)),
			statsLabelStyle.Render("Decode:"), errorStyle.Render(fmt.Sprintf("%d", stats.DecodeErrors)),
		))
	}

	if stats.AnomalousValues > 0 || stats.UnknownVariables > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", stats.AnomalousValues)),
			statsLabelStyle.Render("Unknown vars:"), warningStyle.Render(fmt.Sprintf("%d", stats.UnknownVariables)),
		))
	}

	if stats.PollsSent > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Polls:"), statsValueStyle.Render(fmt.Sprintf("%d (%d replies)", stats.PollsSent, stats.PollReplies)),
			statsLabelStyle.Render("Timeouts:"), warningStyle.Render(fmt.Sprintf("%d", stats.PollTimeouts)),
		))
	}

	errRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	if stats.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errRate,
		statsLabelStyle.Render("Resync:"), headerStyle.Render(fmt.Sprintf("%d bytes", stats.ResyncBytes)),
	))

	return b.String()
}

// renderCache renders the known cache fields two per line
func renderCache(c *vallox.Cache) string {
	var cells []string
	for _, f := range vallox.Fields() {
		if !c.IsSet(f) {
			continue
		}
		cells = append(cells, fmt.Sprintf("%s %s",
			statsLabelStyle.Render(fmt.Sprintf("%-17s", f.String()+":")),
			statsValueStyle.Render(fmt.Sprintf("%-10s", vallox.FormatField(f, c.Get(f)))),
		))
	}

	var b strings.Builder
	for i := 0; i < len(cells); i += 2 {
		b.WriteString(cells[i])
		if i+1 < len(cells) {
			b.WriteString("  ")
			b.WriteString(cells[i+1])
		}
		if i+2 < len(cells) {
			b.WriteString("\n")
		}
	}
	for _, v := range vallox.ValidateState(c) {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("⚠ " + v.Message))
	}
	return b.String()
}

// renderLog renders the newest entries that fit in height lines
func renderLog(entries []errorLogEntry, height int) string {
	if height < 5 {
		height = 5
	}
	if len(entries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	start := len(entries) - height
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for _, entry := range entries[start:] {
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	return b.String()
}
