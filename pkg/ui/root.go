// Copyright 2023 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/binkynet/IrWorker/pkg/service/results"
)

const (
	maxRows = 100
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	tableBorder  = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

// Root is the model of the live frame view.
type Root struct {
	pin     int
	width   int
	height  int
	loadAvg string

	events []results.Event
	table  table.Model
}

var _ tea.Model = Root{}

// NewRoot creates the model for frames received on the given pin.
func NewRoot(pin int) Root {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Received", Width: 16},
			{Title: "Format", Width: 12},
			{Title: "Button", Width: 20},
			{Title: "Pairs", Width: 6},
			{Title: "Duration", Width: 12},
			{Title: "Warnings", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	t.SetStyles(s)
	return Root{
		pin:   pin,
		table: t,
	}
}

// frameMsg is sent when a frame has been analyzed.
type frameMsg results.Event

// tickMsg refreshes relative times.
type tickMsg time.Time

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return tea.Batch(doReloadCPULoadAvg(), doTick())
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadAvgMsg:
		r.loadAvg = string(msg)
		return r, doReloadCPULoadAvg()
	case tickMsg:
		r.table.SetRows(r.rows())
		return r, doTick()
	case frameMsg:
		r.events = append([]results.Event{results.Event(msg)}, r.events...)
		if len(r.events) > maxRows {
			r.events = r.events[:maxRows]
		}
		r.table.SetRows(r.rows())
		return r, nil
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
		if h := r.height - lipgloss.Height(r.headerView()) - 4; h > 2 {
			r.table.SetHeight(h)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return r, tea.Quit
		case "c":
			r.events = nil
			r.table.SetRows(nil)
			return r, nil
		}
	}

	// Handle keyboard events in the table
	var cmd tea.Cmd
	r.table, cmd = r.table.Update(msg)
	return r, cmd
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	s := r.headerView()
	s += tableBorder.Render(r.table.View()) + "\n"
	if e, ok := r.selected(); ok && len(e.Result.Warnings) > 0 {
		s += warningStyle.Render(strings.Join(e.Result.Warnings, "; ")) + "\n"
	}
	s += subtleStyle.Render("c - Clear, q - Quit") + "\n"
	return s
}

func (r Root) headerView() string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("IR Worker, pin %d", r.pin)),
		subtleStyle.Render(fmt.Sprintf("  %s frames  ", humanize.Comma(int64(len(r.events))))),
		r.loadAvg,
	) + "\n"
}

// selected returns the event under the cursor.
func (r Root) selected() (results.Event, bool) {
	idx := r.table.Cursor()
	if idx < 0 || idx >= len(r.events) {
		return results.Event{}, false
	}
	return r.events[idx], true
}

// rows builds the table rows from the received events.
func (r Root) rows() []table.Row {
	rows := make([]table.Row, 0, len(r.events))
	for _, e := range r.events {
		rows = append(rows, table.Row{
			humanize.Time(e.Time),
			string(e.Result.Format),
			e.Result.Button(),
			humanize.Comma(int64(len(e.Frame))),
			humanize.Comma(int64(e.Frame.Duration())) + "us",
			strings.Join(e.Result.Warnings, "; "),
		})
	}
	return rows
}

type loadAvgMsg string

func doReloadCPULoadAvg() tea.Cmd {
	return tea.Tick(time.Second*2, func(t time.Time) tea.Msg {
		content, err := os.ReadFile("/proc/loadavg")
		if err != nil {
			return loadAvgMsg("")
		}
		return loadAvgMsg(strings.TrimSpace(string(content)))
	})
}

func doTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
