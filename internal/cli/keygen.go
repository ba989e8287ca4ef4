package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/veloxdb/fieldcrypt"
)

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh encryption secret",
		Long: `Keygen prints a new random secret suitable for the secrets list.
Prepend it to the existing secrets to rotate: new rows encrypt under the
new secret while old rows stay readable under the previous ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := fieldcrypt.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}
