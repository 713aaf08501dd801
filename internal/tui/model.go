// Package tui is a full-screen chat console against a running shopbot server.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hrlight/shopbot/internal/botclient"
	"github.com/hrlight/shopbot/internal/config"
)

const historyLimit = 200

type chatDoneMsg struct {
	segments []string
	err      error
}

type model struct {
	cfg     config.Config
	logger  *slog.Logger
	client  *botclient.Client
	input   textinput.Model
	history []string
	loading bool
	width   int
	height  int
}

func Run(cfg config.Config, logger *slog.Logger) error {
	input := textinput.New()
	input.Placeholder = "跟 shopbot 說點什麼…"
	input.Focus()
	input.CharLimit = 500

	program := tea.NewProgram(model{
		cfg:    cfg,
		logger: logger,
		client: botclient.New(cfg.BotAPIURL, 60*time.Second),
		input:  input,
	}, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case chatDoneMsg:
		m.loading = false
		if typed.err != nil {
			m.history = m.appendHistory(errorStyle.Render("error: " + typed.err.Error()))
			return m, nil
		}
		for _, segment := range typed.segments {
			m.history = m.appendHistory(botStyle.Render("bot> ") + segment)
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.loading {
				return m, nil
			}
			if text == "/exit" || text == "/quit" {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.history = m.appendHistory(userStyle.Render("you> ") + text)
			m.loading = true
			return m, m.sendChat(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) sendChat(text string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		response, err := client.Chat(ctx, botclient.ChatRequest{UserID: "console", Text: text})
		if err != nil {
			return chatDoneMsg{err: err}
		}
		return chatDoneMsg{segments: response.Segments}
	}
}

func (m model) appendHistory(line string) []string {
	history := append(m.history, line)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return history
}

func (m model) View() string {
	var view strings.Builder
	view.WriteString(titleStyle.Render("shopbot console"))
	view.WriteString(hintStyle.Render(fmt.Sprintf("  %s", m.cfg.BotAPIURL)))
	view.WriteString("\n\n")

	visible := m.history
	if m.height > 6 && len(visible) > m.height-6 {
		visible = visible[len(visible)-(m.height-6):]
	}
	for _, line := range visible {
		view.WriteString(line)
		view.WriteString("\n")
	}

	view.WriteString("\n")
	if m.loading {
		view.WriteString(hintStyle.Render("thinking…"))
		view.WriteString("\n")
	}
	view.WriteString(m.input.View())
	view.WriteString("\n")
	view.WriteString(hintStyle.Render("enter to send · /exit or esc to quit"))
	return view.String()
}
