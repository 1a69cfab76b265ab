package servecmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oibchat/oib/pkg/logger"
	"github.com/oibchat/oib/server"
)

const serveLongDesc string = `Run the OIB chat proxy.

The proxy terminates POST /chat, applies per-caller rate limiting, and
relays requests to the configured hosted models. Provider credentials
come from the XAI_API_KEY and GROQ_API_KEY environment variables.

Examples:
  oib serve
  oib serve --listen :9090 --debug
  oib serve --config /etc/oib/oib.toml`

const serveShortDesc string = "Run the chat proxy server"

type serveCommander struct {
	configPath string
	listenAddr string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (overrides config)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run() error {
	config := server.DefaultConfig()

	if c.configPath != "" {
		if err := config.LoadFile(c.configPath); err != nil {
			return err
		}
	}
	config.ApplyEnv()

	if c.listenAddr != "" {
		config.ListenAddr = c.listenAddr
	}
	if c.debug {
		config.Debug = true
	}

	log := logger.New(config.Debug, config.JSONLogs)
	defer log.Sync()

	s, err := server.New(config, log)
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}
	defer s.Close()

	if err := s.Run(); err != nil {
		log.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}
