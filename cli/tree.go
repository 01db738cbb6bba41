package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new AddLeaf events into the local ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Stop()

		snapshot, err := container.Ledger.Sync(cmd.Context())
		if err != nil {
			return err
		}
		container.Logger.WithFields(logrus.Fields{
			"network": container.NetworkName,
			"leaves":  snapshot.Len(),
		}).Info("[Sync] ledger up to date")
		return nil
	},
}

var rootHashCmd = &cobra.Command{
	Use:   "root",
	Short: "Print the local accumulator root next to the contract's last root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Stop()

		if _, err := container.Ledger.Sync(cmd.Context()); err != nil {
			return err
		}
		resp, err := container.TreeService.Root(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

var witnessCmd = &cobra.Command{
	Use:   "witness [commitment]",
	Short: "Print the authentication path of a recorded commitment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := openContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Stop()

		if _, err := container.Ledger.Sync(cmd.Context()); err != nil {
			return err
		}
		resp, err := container.TreeService.Witness(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(rootHashCmd)
	rootCmd.AddCommand(witnessCmd)
}
