// SPDX-License-Identifier: MIT
//
// Package tui is the interactive input device picker behind "list --pick".
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"lightshow/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

var (
	keyQuit    = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp      = key.NewBinding(key.WithKeys("up", "k"))
	keyDown    = key.NewBinding(key.WithKeys("down", "j"))
	keyConfirm = key.NewBinding(key.WithKeys("enter"))
	keyBack    = key.NewBinding(key.WithKeys("esc"))
)

// SampleRates offered on the rate screen.
var SampleRates = []float64{44100, 48000, 88200, 96000}

// ErrNoInputDevices is returned when nothing can capture audio.
var ErrNoInputDevices = errors.New("no input devices found")

// ErrCancelled is returned when the user quits without choosing.
var ErrCancelled = errors.New("device selection cancelled")

type screen int

const (
	deviceScreen screen = iota
	rateScreen
)

// Selection is the device and capture settings the user confirmed.
type Selection struct {
	Device     audio.Device
	SampleRate float64
	Channels   int
}

// YAML renders the selection as an audio section to paste into the
// configuration file.
func (s Selection) YAML() ([]byte, error) {
	var doc struct {
		Audio struct {
			InputDevice int     `yaml:"input_device"`
			SampleRate  float64 `yaml:"sample_rate"`
			Channels    int     `yaml:"channels"`
		} `yaml:"audio"`
	}
	doc.Audio.InputDevice = s.Device.ID
	doc.Audio.SampleRate = s.SampleRate
	doc.Audio.Channels = s.Channels
	return yaml.Marshal(&doc)
}

// Picker walks the user through choosing an input device and a sample rate.
type Picker struct {
	devices  []audio.Device
	cursor   int
	rate     int
	active   screen
	viewport viewport.Model
	ready    bool

	chosen *Selection
}

// NewPicker offers the devices that have input channels.
func NewPicker(devices []audio.Device) Picker {
	var inputs []audio.Device
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return Picker{devices: inputs}
}

func (m Picker) Init() tea.Cmd { return nil }

func (m Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		switch m.active {
		case deviceScreen:
			switch {
			case key.Matches(msg, keyUp):
				m.cursor = max(m.cursor-1, 0)
			case key.Matches(msg, keyDown):
				m.cursor = min(m.cursor+1, len(m.devices)-1)
			case key.Matches(msg, keyConfirm):
				if len(m.devices) > 0 {
					m.active = rateScreen
					m.rate = closestRate(m.devices[m.cursor].DefaultSampleRate)
				}
			}
		case rateScreen:
			switch {
			case key.Matches(msg, keyBack):
				m.active = deviceScreen
			case key.Matches(msg, keyUp):
				m.rate = max(m.rate-1, 0)
			case key.Matches(msg, keyDown):
				m.rate = min(m.rate+1, len(SampleRates)-1)
			case key.Matches(msg, keyConfirm):
				d := m.devices[m.cursor]
				m.chosen = &Selection{Device: d, SampleRate: SampleRates[m.rate], Channels: min(d.MaxInputChannels, 2)}
				return m, tea.Quit
			}
		}
	}

	m.viewport.SetContent(m.render())
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// Chosen reports the confirmed selection, if any.
func (m Picker) Chosen() (Selection, bool) {
	if m.chosen == nil {
		return Selection{}, false
	}
	return *m.chosen, true
}

func (m Picker) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var title, help string
	if m.active == deviceScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Choose • q: Quit")
	} else {
		title = titleStyle.Render("Sample Rate")
		help = infoStyle.Render("↑/↓: Change • Enter: Confirm • Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m Picker) render() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}
	var sb strings.Builder
	if m.active == rateScreen {
		d := m.devices[m.cursor]
		fmt.Fprintf(&sb, "Capture from: %s\n\n", d.Name)
		for i, rate := range SampleRates {
			marker := " "
			if i == m.rate {
				marker = "▶"
			}
			line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
			if i == m.rate {
				line = highlightStyle.Render(line)
			}
			sb.WriteString(line)
		}
		return sb.String()
	}

	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s\n    Input channels: %d, default sample rate: %.0f Hz\n",
			d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.cursor {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

func closestRate(rate float64) int {
	best := 0
	for i, r := range SampleRates {
		if abs(r-rate) < abs(SampleRates[best]-rate) {
			best = i
		}
	}
	return best
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Pick runs the picker full screen and returns what the user confirmed.
func Pick(devices []audio.Device) (Selection, error) {
	picker := NewPicker(devices)
	if len(picker.devices) == 0 {
		return Selection{}, ErrNoInputDevices
	}
	final, err := tea.NewProgram(picker, tea.WithAltScreen()).Run()
	if err != nil {
		return Selection{}, err
	}
	sel, ok := final.(Picker).Chosen()
	if !ok {
		return Selection{}, ErrCancelled
	}
	return sel, nil
}
