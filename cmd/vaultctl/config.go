package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"yieldvault/internal/bootstrap"
	"yieldvault/internal/events"
	"yieldvault/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect vault definitions",
	}

	check := &cobra.Command{
		Use:   "check <vault.yaml>",
		Short: "Deploy a vault definition in memory and print its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vf, err := config.LoadVaultFile(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := bootstrap.Build(ctx, vf, bootstrap.Options{Events: events.Multi{}})
			if err != nil {
				return err
			}
			s, err := d.Vault.Summary(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "vault\t%s (%s)\n", s.Address, s.Symbol)
			fmt.Fprintf(w, "asset\t%s (%s, %d decimals)\n", s.Asset, d.Asset.Symbol(), s.Decimals)
			fmt.Fprintf(w, "treasury\t%s\n", s.Treasury)
			fmt.Fprintf(w, "tvl cap\t%s\n", s.TVLCap)
			fmt.Fprintf(w, "withdraw max loss\t%d bps\n", s.WithdrawMaxLossBPS)
			fmt.Fprintf(w, "allocation\t%d bps\n", s.TotalAllocBPS)
			for _, rec := range s.Strategies {
				fmt.Fprintf(w, "strategy\t%s alloc=%d fee=%d\n", rec.Address, rec.AllocBPS, rec.FeeBPS)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(check)
	return cmd
}
