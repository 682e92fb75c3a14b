// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"lightshow/internal/audio"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
	{ID: 2, Name: "USB Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 96000},
}

func press(t *testing.T, m Picker, keys ...tea.KeyMsg) Picker {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Picker)
	}
	return m
}

var (
	down  = tea.KeyMsg{Type: tea.KeyDown}
	up    = tea.KeyMsg{Type: tea.KeyUp}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	quit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
)

func TestPickerSkipsOutputOnlyDevices(t *testing.T) {
	m := NewPicker(testDevices)
	if len(m.devices) != 2 {
		t.Fatalf("offered %d devices, want 2", len(m.devices))
	}
	if m.devices[0].Name != "Built-in Mic" {
		t.Errorf("first device = %q", m.devices[0].Name)
	}
}

func TestPickerSelection(t *testing.T) {
	tests := []struct {
		name     string
		keys     []tea.KeyMsg
		wantID   int
		wantRate float64
		wantCh   int
	}{
		{"default device and rate", []tea.KeyMsg{enter, enter}, 1, 44100, 1},
		{"second device keeps its rate", []tea.KeyMsg{down, enter, enter}, 2, 96000, 2},
		{"cursor stops at the end", []tea.KeyMsg{down, down, down, enter, enter}, 2, 96000, 2},
		{"change rate", []tea.KeyMsg{enter, down, enter}, 1, 48000, 1},
		{"back then pick another", []tea.KeyMsg{enter, esc, down, enter, up, enter}, 2, 88200, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := press(t, NewPicker(testDevices), tt.keys...)
			sel, ok := m.Chosen()
			if !ok {
				t.Fatal("nothing chosen")
			}
			if sel.Device.ID != tt.wantID || sel.SampleRate != tt.wantRate || sel.Channels != tt.wantCh {
				t.Errorf("got device %d at %v Hz with %d channels, want %d at %v with %d",
					sel.Device.ID, sel.SampleRate, sel.Channels, tt.wantID, tt.wantRate, tt.wantCh)
			}
		})
	}
}

func TestPickerQuitChoosesNothing(t *testing.T) {
	m := NewPicker(testDevices)
	next, cmd := m.Update(quit)
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := next.(Picker).Chosen(); ok {
		t.Error("quit should not choose a device")
	}
}

func TestPickerView(t *testing.T) {
	m := NewPicker(testDevices)
	if m.View() != "Initializing..." {
		t.Errorf("view before sizing = %q", m.View())
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Picker)
	m = press(t, m, down)
	if !strings.Contains(m.View(), "USB Interface") {
		t.Errorf("device list missing from view:\n%s", m.View())
	}
	m = press(t, m, enter)
	if !strings.Contains(m.View(), "96000 Hz") {
		t.Errorf("rate screen missing from view:\n%s", m.View())
	}
}

func TestPickNoInputs(t *testing.T) {
	_, err := Pick(testDevices[:1])
	if !errors.Is(err, ErrNoInputDevices) {
		t.Errorf("err = %v, want ErrNoInputDevices", err)
	}
}

func TestSelectionYAML(t *testing.T) {
	sel := Selection{Device: testDevices[2], SampleRate: 48000, Channels: 2}
	out, err := sel.YAML()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"audio:", "input_device: 2", "sample_rate: 48000", "channels: 2"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}
