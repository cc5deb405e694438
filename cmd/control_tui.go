// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/vallostat/internal/bridge"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusSettings = iota
	focusValueInput
	focusCount
)

const settingsPanelWidth = 30

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// setting is one entry of the settings list
type setting struct {
	name  string
	field vallox.Field
	help  string
}

// Implement list.Item interface
func (s setting) Title() string       { return s.name }
func (s setting) Description() string { return s.help }
func (s setting) FilterValue() string { return s.name }

// settingInfo maps Execute's setting names onto the cache field they change
var settingInfo = map[string]setting{
	"power":             {field: vallox.FieldOn, help: "on / off"},
	"fan_speed":         {field: vallox.FieldFanSpeed, help: fmt.Sprintf("%d-%d", vallox.MinFanSpeed, vallox.MaxFanSpeed)},
	"default_fan_speed": {field: vallox.FieldDefaultFanSpeed, help: fmt.Sprintf("%d-%d", vallox.MinFanSpeed, vallox.MaxFanSpeed)},
	"rh_mode":           {field: vallox.FieldRhMode, help: "on / off"},
	"heating_mode":      {field: vallox.FieldHeatingMode, help: "on / off"},
	"service_period":    {field: vallox.FieldServicePeriod, help: "months"},
	"service_counter":   {field: vallox.FieldServiceCounter, help: "months"},
	"heating_target":    {field: vallox.FieldHeatingTarget, help: fmt.Sprintf("%d-%d °C", vallox.MinHeatingTarget, vallox.MaxHeatingTarget)},
}

// controlSettings lists the settings in Execute's order
func controlSettings() []setting {
	names := bridge.Settings()
	out := make([]setting, 0, len(names))
	for _, name := range names {
		s, ok := settingInfo[name]
		if !ok {
			s = setting{field: -1}
		}
		s.name = name
		out = append(out, s)
	}
	return out
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	connInfo string
	submit   func(controlCommand) bool

	settings     list.Model
	valueInput   textinput.Model
	focusedField int

	cache         *vallox.Cache
	stats         *vallox.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	width          int
	height         int
	initializing   bool
	ready          bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type unitStateMsg struct {
	cache *vallox.Cache
	stats *vallox.Statistics
}

type initStartedMsg struct{}

type initDoneMsg struct {
	err error
}

type commandResultMsg struct {
	command controlCommand
	err     error
}

type busErrorMsg struct {
	err error
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connInfo string, submit func(controlCommand) bool) controlModel {
	ti := textinput.New()
	ti.Placeholder = "value"
	ti.CharLimit = 8
	ti.Width = 10

	settings := controlSettings()
	items := make([]list.Item, len(settings))
	for i, s := range settings {
		items[i] = s
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	settingList := list.New(items, delegate, settingsPanelWidth-2, 10)
	settingList.Title = "Settings"
	settingList.SetShowStatusBar(false)
	settingList.SetShowHelp(false)
	settingList.SetFilteringEnabled(false)

	return controlModel{
		connInfo:      connInfo,
		submit:        submit,
		settings:      settingList,
		valueInput:    ti,
		focusedField:  focusSettings,
		cache:         vallox.NewCache(),
		stats:         vallox.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if m.focusedField == focusSettings {
			var cmd tea.Cmd
			m.settings, cmd = m.settings.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case unitStateMsg:
		m.cache = msg.cache
		m.stats = msg.stats

	case initStartedMsg:
		m.initializing = true
		m.addLogEntry("Reading unit state...", false)

	case initDoneMsg:
		m.initializing = false
		m.ready = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Initial read incomplete: %v", msg.err), true)
		} else {
			m.addLogEntry("Unit state read", false)
		}

	case commandResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s=%s failed: %v", msg.command.setting, msg.command.value, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s=%s ok", msg.command.setting, msg.command.value), false)
		}

	case busErrorMsg:
		m.addLogEntry(msg.err.Error(), true)

	case connectionLostMsg:
		m.connectionLost = true
		m.ready = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		} else {
			m.addLogEntry("Connection lost - reconnecting...", true)
		}

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "esc":
		return m.setFocus(focusSettings), nil

	case "enter":
		return m.handleEnter()
	}

	if m.focusedField == focusValueInput {
		var cmd tea.Cmd
		m.valueInput, cmd = m.valueInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "p":
		m.toggle("power", vallox.FieldOn)
	case "r":
		m.toggle("rh_mode", vallox.FieldRhMode)
	case "h":
		m.toggle("heating_mode", vallox.FieldHeatingMode)
	case "+", "=":
		m.stepFanSpeed(1)
	case "-":
		m.stepFanSpeed(-1)
	default:
		var cmd tea.Cmd
		m.settings, cmd = m.settings.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m controlModel) cycleFocus(delta int) controlModel {
	return m.setFocus((m.focusedField + delta + focusCount) % focusCount)
}

func (m controlModel) setFocus(field int) controlModel {
	m.focusedField = field
	if field == focusValueInput {
		m.valueInput.Placeholder = m.currentValue()
		m.valueInput.Focus()
	} else {
		m.valueInput.Blur()
	}
	return m
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.focusedField == focusSettings {
		return m.setFocus(focusValueInput), nil
	}

	s, ok := m.selectedSetting()
	value := strings.TrimSpace(m.valueInput.Value())
	if !ok || value == "" {
		return m, nil
	}
	if m.send(s.name, value) {
		m.valueInput.SetValue("")
		m = m.setFocus(focusSettings)
	}
	return m, nil
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// send queues a setting change and reports whether it was accepted
func (m *controlModel) send(name, value string) bool {
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return false
	}
	if !m.submit(controlCommand{setting: name, value: value}) {
		m.addLogEntry("Command queue full, try again", true)
		return false
	}
	m.addLogEntry(fmt.Sprintf("Sending %s=%s", name, value), false)
	return true
}

func (m *controlModel) toggle(name string, field vallox.Field) {
	if !m.cache.IsSet(field) {
		m.addLogEntry(fmt.Sprintf("Cannot toggle %s: state unknown", name), true)
		return
	}
	m.send(name, onOffString(m.cache.Get(field) != 1))
}

func (m *controlModel) stepFanSpeed(delta int) {
	if !m.cache.IsSet(vallox.FieldFanSpeed) {
		m.addLogEntry("Cannot change fan speed: speed unknown", true)
		return
	}
	current := m.cache.FanSpeed()
	next := current + delta
	if next < vallox.MinFanSpeed {
		next = vallox.MinFanSpeed
	}
	if next > vallox.MaxFanSpeed {
		next = vallox.MaxFanSpeed
	}
	if next == current {
		return
	}
	m.send("fan_speed", fmt.Sprintf("%d", next))
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var focusedBoxStyle = boxStyle.BorderForeground(lipgloss.Color("12"))

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	helpText := "q=quit Tab=switch p=power +/-=speed r=rh h=heating"
	s.WriteString(titleStyle.Render("VALLOSTAT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", connStatus, helpText)))
	s.WriteString("\n\n")

	rightWidth := m.width - settingsPanelWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	listStyle := boxStyle.Width(settingsPanelWidth)
	if m.focusedField == focusSettings {
		listStyle = focusedBoxStyle.Width(settingsPanelWidth)
	}
	settingsPanel := listStyle.Render(m.settings.View())

	unitStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusValueInput {
		unitStyle = focusedBoxStyle.Width(rightWidth)
	}
	unitPanel := unitStyle.Render(m.renderUnitPanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, settingsPanel, " ", unitPanel))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Width(m.width - 4).Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.errorLog, m.height-m.settings.Height()-16)))

	return s.String()
}

func (m controlModel) renderUnitPanel() string {
	var s strings.Builder

	switch {
	case m.connectionLost:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	case m.initializing:
		s.WriteString(warningStyle.Render("⏳ Reading unit state..."))
	case m.ready:
		s.WriteString(statsValueStyle.Render("✓ Connected"))
	}
	s.WriteString("\n\n")

	if m.cache.Updated().IsZero() {
		s.WriteString(headerStyle.Render("No values yet"))
	} else {
		s.WriteString(renderCache(m.cache))
	}
	s.WriteString("\n\n")

	sel, ok := m.selectedSetting()
	if !ok {
		return s.String()
	}
	s.WriteString(fmt.Sprintf("%s %s %s\n",
		statsLabelStyle.Render("Selected:"), sel.name, headerStyle.Render("("+sel.help+")")))
	s.WriteString(statsLabelStyle.Render("New value: "))
	if m.focusedField == focusValueInput {
		s.WriteString(m.valueInput.View())
	} else {
		s.WriteString(fmt.Sprintf("[%s]", m.currentValue()))
	}

	return s.String()
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) selectedSetting() (setting, bool) {
	s, ok := m.settings.SelectedItem().(setting)
	return s, ok
}

// currentValue is the selected setting's cached value in Execute's syntax
func (m controlModel) currentValue() string {
	s, ok := m.selectedSetting()
	if !ok || s.field < 0 || !m.cache.IsSet(s.field) {
		return "?"
	}
	v := m.cache.Get(s.field)
	if s.field.IsFlag() {
		return onOffString(v == 1)
	}
	return fmt.Sprintf("%d", v)
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 6 {
		listHeight = 6
	}
	m.settings.SetSize(settingsPanelWidth-2, listHeight)
}
