package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cadenzahq/cadenza/internal/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive support conversation",
	Long: `Starts a terminal chat session against the orchestrator. The session
persists in the configured state store, so a suspended approval survives
restarting the command with the same --session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		trace, _ := cmd.Flags().GetBool("trace")

		app, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Printf("Session %s. Type 'exit' to quit.\n", sessionID)
		fmt.Println("Hi! I'm your music-store assistant. May I have your customer ID?")

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return nil // EOF ends the chat
			}
			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			if input == "q" || input == "exit" || input == "quit" {
				fmt.Println("Bye!")
				return nil
			}

			result, err := app.Orchestrator.Turn(cmd.Context(), sessionID, input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			if trace {
				for _, visit := range result.Trace {
					fmt.Printf("  [%s] %d message(s)\n", visit.Node, len(visit.Messages))
				}
			}
			fmt.Println(result.Reply)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session ID to start or resume")
	chatCmd.Flags().Bool("trace", false, "Print the node trace for each turn")
}
