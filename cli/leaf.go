package cli

import (
	"github.com/spf13/cobra"

	"twister-backend/internal/commitment"
	"twister-backend/internal/dto"
	"twister-backend/internal/field"
	"twister-backend/internal/types"
)

// secretFlags passphrase or raw secret, bound by commands that need a note secret
type secretFlags struct {
	Passphrase string
	RawSecret  string
}

func (f *secretFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Passphrase, "passphrase", "p", "", "note passphrase")
	cmd.Flags().StringVar(&f.RawSecret, "raw-secret", "", "raw 32-byte secret as hex, instead of a passphrase")
}

func (f *secretFlags) source() types.SecretSource {
	return types.SecretSource{Passphrase: f.Passphrase, RawSecret: f.RawSecret}
}

var leafFlags struct {
	secretFlags
	Amount string
	Check  bool
}

var leafCmd = &cobra.Command{
	Use:     "leaf",
	Aliases: []string{"note"},
	Short:   "Derive the leaf and nullifier of a note",
	Long: "Derives leaf = H(secret, amount) and nullifier = H(leaf, secret) offline.\n" +
		"With --check the ledger is synced and the leaf index is reported when recorded.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := types.NoteRequest{SecretSource: leafFlags.source(), Amount: leafFlags.Amount}

		if leafFlags.Check {
			container, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Stop()
			if _, err := container.Ledger.Sync(cmd.Context()); err != nil {
				return err
			}
			resp, err := container.TreeService.Note(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		}

		secret, err := field.ResolveSecret(req.Passphrase, req.RawSecret)
		if err != nil {
			return err
		}
		amount, err := field.ParseEther(req.Amount)
		if err != nil {
			return err
		}
		note, err := commitment.NewCodec(commitment.NewPoseidonHasher()).Note(secret, amount)
		if err != nil {
			return err
		}
		return printJSON(cmd, dto.NoteResponse{
			Amount:    field.FormatEther(amount),
			AmountWei: amount.String(),
			Leaf:      note.Leaf.Hex(),
			Nullifier: note.Nullifier.Hex(),
		})
	},
}

func init() {
	leafFlags.bind(leafCmd)
	leafCmd.Flags().StringVarP(&leafFlags.Amount, "amount", "a", "", "note amount in ether, e.g. 0.1")
	leafCmd.Flags().BoolVar(&leafFlags.Check, "check", false, "sync the ledger and report whether the leaf is recorded")
	_ = leafCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(leafCmd)
}
