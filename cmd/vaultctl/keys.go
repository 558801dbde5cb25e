package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yieldvault/pkg/identity"
)

const passwordEnv = "KEYSTORE_PASSWORD"

func newKeygenCmd() *cobra.Command {
	var (
		dir   string
		label string
		count int
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate encrypted identities",
		Long: `Generate ed25519 identities and store them encrypted in the keystore.

The password is read from ` + passwordEnv + `.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv(passwordEnv)
			if password == "" {
				return errors.New(passwordEnv + " is not set")
			}
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			ks := identity.NewKeystore(dir)
			for i := 0; i < count; i++ {
				account := ks.Generate()
				path, err := ks.Save(account, label, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", identity.Address(account), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", identity.DefaultDir, "keystore directory")
	cmd.Flags().StringVar(&label, "label", "", "label stored with the key")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of keys to generate")
	return cmd
}

func newKeysCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored identities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := identity.NewKeystore(dir).List()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Address, e.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", identity.DefaultDir, "keystore directory")
	return cmd
}
