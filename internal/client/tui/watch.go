// Package tui renders the live mirror view of the watch command.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/sync"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	doneStyle   = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	statusStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Run starts the watch view. It returns when the user quits.
func Run(engine *sync.Engine, row *sync.RowController) error {
	program := tea.NewProgram(newWatchModel(engine, row))

	cancel := engine.Notify(func(u sync.Update) {
		program.Send(updateMsg(u))
	})
	defer cancel()

	_, err := program.Run()
	return err
}

type (
	updateMsg sync.Update
	failedMsg error
)

type watchModel struct {
	engine *sync.Engine
	row    *sync.RowController

	items    []model.Item
	failures int
	cursor   int
	err      error
}

func newWatchModel(engine *sync.Engine, row *sync.RowController) watchModel {
	return watchModel{engine: engine, row: row, items: engine.Items()}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		// The mirror moved: the snapshot wholly replaces what we show.
		m.items = msg.Items
		m.failures = len(msg.Failures)
		m.err = msg.Err
		if m.cursor >= len(m.items) {
			m.cursor = max(0, len(m.items)-1)
		}
		return m, nil

	case failedMsg:
		m.err = msg
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case " ", "enter":
			if m.cursor < len(m.items) {
				item := m.items[m.cursor]
				return m, func() tea.Msg {
					if err := m.row.Toggle(context.Background(), item); err != nil {
						return failedMsg(err)
					}
					return nil
				}
			}
		case "d":
			if m.cursor < len(m.items) {
				id := m.items[m.cursor].ID
				return m, func() tea.Msg {
					if err := m.engine.Delete(context.Background(), id); err != nil {
						return failedMsg(err)
					}
					return nil
				}
			}
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("To Do List"))
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(statusStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}
	for i, item := range m.items {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}

		box := "[ ]"
		line := fmt.Sprintf("%s due %s", item.Title, item.DueDate.Format("2006-01-02"))
		if item.IsDone {
			box = "[x]"
			line = doneStyle.Render(line)
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, box, line)
	}

	b.WriteString("\n")
	if m.failures > 0 {
		b.WriteString(statusStyle.Render(fmt.Sprintf("%d malformed records skipped", m.failures)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("space/enter toggle · d delete · q quit"))
	b.WriteString("\n")

	return b.String()
}
