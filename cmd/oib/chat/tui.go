package chatcmder

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/oibchat/oib/pkg/chat"
	"github.com/oibchat/oib/pkg/client"
)

// refreshInterval paces snapshot redraws while a reply is streaming.
const refreshInterval = time.Second / 30

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	aiStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	reasoningStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

type sendDoneMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// chatModel is the bubbletea model for the chat view. All conversation state
// lives in the orchestrator; the model just polls snapshots and renders.
type chatModel struct {
	orch     *client.Orchestrator
	vp       viewport.Model
	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool
}

func newChatModel(orch *client.Orchestrator) chatModel {
	input := textinput.New()
	input.Placeholder = "Ask about your business..."
	input.CharLimit = chat.MaxMessageLen
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	return chatModel{
		orch:  orch,
		input: input,
		spin:  spin,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := msg.Height - 4 // header, status, input
		if !m.ready {
			m.vp = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = vpHeight
		}
		m.input.Width = msg.Width - 4

		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-2),
		); err == nil {
			m.renderer = r
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.orch.Cancel()
			return m, tea.Quit

		case "esc":
			m.orch.Cancel()
			m.refresh()

		case "enter":
			content := strings.TrimSpace(m.input.Value())
			if content == "" {
				break
			}
			m.input.Reset()
			cmds = append(cmds, m.sendCmd(content), tickCmd())
			m.refresh()

		case "ctrl+r":
			cmds = append(cmds, func() tea.Msg {
				m.orch.RetryLastMessage(context.Background())
				return sendDoneMsg{}
			}, tickCmd())

		case "ctrl+n":
			m.orch.NewThread()
			m.refresh()

		case "ctrl+l":
			m.orch.ClearMessages()
			m.refresh()

		case "tab":
			if m.orch.Model().OrDefault() == chat.ModelPrimary {
				m.orch.SetModel(chat.ModelSecondary)
			} else {
				m.orch.SetModel(chat.ModelPrimary)
			}
		}

	case tickMsg:
		m.refresh()
		if m.orch.Snapshot().IsStreaming {
			cmds = append(cmds, tickCmd())
		}

	case sendDoneMsg:
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// sendCmd runs the blocking send off the UI goroutine; ticks drive redraws
// until it settles.
func (m chatModel) sendCmd(content string) tea.Cmd {
	return func() tea.Msg {
		m.orch.SendMessage(context.Background(), content)
		return sendDoneMsg{}
	}
}

// refresh re-renders the conversation into the viewport and follows the
// tail.
func (m *chatModel) refresh() {
	if !m.ready {
		return
	}

	atBottom := m.vp.AtBottom()
	m.vp.SetContent(m.renderConversation())
	if atBottom {
		m.vp.GotoBottom()
	}
}

func (m *chatModel) renderConversation() string {
	state := m.orch.Snapshot()

	var b strings.Builder
	for _, msg := range state.Messages {
		switch msg.Type {
		case chat.MessageUser:
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
		case chat.MessageAI:
			b.WriteString(aiStyle.Render("OIB"))
			b.WriteString("\n")
			if msg.Reasoning != "" {
				b.WriteString(reasoningStyle.Render(msg.Reasoning))
				b.WriteString("\n")
			}
			b.WriteString(m.renderAnswer(msg))
		}
		b.WriteString("\n\n")
	}

	if state.Err != nil {
		b.WriteString(errStyle.Render("error: " + state.Err.Message))
		b.WriteString("\n")
	}
	return b.String()
}

// renderAnswer renders completed answers as markdown; a message still
// streaming stays plain text so partial markdown doesn't flicker.
func (m *chatModel) renderAnswer(msg chat.Message) string {
	if msg.IsStreaming || m.renderer == nil || msg.Content == client.Apology {
		return msg.Content
	}
	out, err := m.renderer.Render(msg.Content)
	if err != nil {
		return msg.Content
	}
	return strings.TrimSpace(out)
}

func (m chatModel) View() string {
	if !m.ready {
		return "loading..."
	}

	header := headerStyle.Render("OIB Chat") +
		statusStyle.Render("  model: "+string(m.orch.Model().OrDefault()))

	state := m.orch.Snapshot()
	status := statusStyle.Render("enter send · esc cancel · ctrl+r retry · ctrl+n new · tab model")
	if state.IsStreaming {
		label := "answering"
		if state.IsReasoning {
			label = "thinking"
		}
		status = m.spin.View() + statusStyle.Render(label+"...")
	}

	return header + "\n" + m.vp.View() + "\n" + status + "\n> " + m.input.View()
}
