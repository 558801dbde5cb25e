package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "vaultctl",
		Short: "Operate a yield vault deployment",
		Long: `vaultctl manages the pieces around a running vault.

Available commands:
  keygen  - Generate encrypted identities for vault, strategy and role addresses
  keys    - List stored identities
  migrate - Apply or roll back database migrations
  config  - Validate a vault definition
  queue   - Maintain the event queue`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newKeygenCmd(),
		newKeysCmd(),
		newMigrateCmd(),
		newConfigCmd(),
		newQueueCmd(),
	)
	return root
}
