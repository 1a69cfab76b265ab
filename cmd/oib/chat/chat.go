package chatcmder

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/oibchat/oib/pkg/chat"
	"github.com/oibchat/oib/pkg/client"
)

const chatLongDesc string = `Open a terminal conversation against a running OIB proxy.

Messages stream in as the model produces them, with the model's
reasoning shown dimmed above the answer. Keys:

  enter    send the message
  esc      cancel the in-flight reply
  ctrl+r   retry the last message
  ctrl+n   start a new thread
  ctrl+l   clear the current thread
  tab      toggle between the primary and secondary model
  ctrl+c   quit

Examples:
  oib chat
  oib chat --server http://localhost:8080 --model secondary`

const chatShortDesc string = "Chat with the assistant from the terminal"

type chatCommander struct {
	serverURL   string
	model       string
	contextText string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.serverURL, "server", "s", "http://localhost:8080", "Proxy server URL")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "primary", "Model to chat with (primary or secondary)")
	cmd.Flags().StringVar(&cmder.contextText, "context", "", "Extra context sent with every message")

	return cmd
}

func (c *chatCommander) run() error {
	model := chat.Model(c.model)
	if !model.Valid() {
		return fmt.Errorf("unknown model %q (want primary or secondary)", c.model)
	}

	orch := client.NewOrchestrator(
		client.NewService(c.serverURL),
		client.WithModel(model.OrDefault()),
		client.WithContext(c.contextText),
	)

	program := tea.NewProgram(newChatModel(orch), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}
