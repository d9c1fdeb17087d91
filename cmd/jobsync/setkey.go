package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/config"
)

var setKeyCmd = &cobra.Command{
	Use:   "set-key <provider>",
	Short: "Store an LLM API key in the OS keyring",
	Long: `Reads the key from stdin and stores it in the OS keyring under the
"jobsync" service. It is used when neither llm.api_key nor the provider's
environment variable is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runSetKey,
}

func init() {
	rootCmd.AddCommand(setKeyCmd)
}

func runSetKey(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	fmt.Fprintf(os.Stderr, "Enter %s API key: ", args[0])
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fatal(logger, "failed to read key", err)
	}

	if err := config.StoreAPIKey(args[0], strings.TrimSpace(line)); err != nil {
		fatal(logger, "failed to store key", err)
	}
	fmt.Printf("Stored %s key in the keyring (service %q)\n", args[0], config.KeyringService)
	return nil
}
