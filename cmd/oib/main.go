package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	chatcmder "github.com/oibchat/oib/cmd/oib/chat"
	servecmder "github.com/oibchat/oib/cmd/oib/serve"
)

const rootLongDesc string = `oib is the OIB chat assistant toolchain.

The serve subcommand runs the chat proxy that fronts the hosted model
providers; the chat subcommand opens a terminal conversation against a
running proxy.`

func main() {
	// A .env beside the binary is a convenience for local runs; absence
	// is not an error.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "oib",
		Short: "OIB chat assistant",
		Long:  rootLongDesc,
	}

	root.AddCommand(servecmder.NewServeCmd())
	root.AddCommand(chatcmder.NewChatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
