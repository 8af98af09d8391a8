package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgermsg/internal/keys"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Output string
	Force  bool
}

// KeyView is the output of keygen and address.
type KeyView struct {
	Address string `json:"address"`
	Path    string `json:"path"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 keypair file",
		Long: `Generate a new ed25519 keypair and write it as a JSON array of the
64 private key bytes (mode 0600). The public key is the principal's
address.

Examples:
  ledgermsg keygen -o alice.json
  ledgermsg keygen -o alice.json --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			priv, err := keys.Generate()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to generate key", err)
			}
			if err := keys.Save(opts.Output, priv, opts.Force); err != nil {
				if errors.Is(err, keys.ErrExists) {
					return WrapExitError(ExitCommandError, "refusing to overwrite (use --force)", err)
				}
				return WrapExitError(ExitCommandError, "failed to write key", err)
			}
			view := KeyView{Address: keys.Address(priv).String(), Path: opts.Output}
			return out.Emit(view, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %s\n", view.Path)
				fmt.Fprintf(w, "Address: %s\n", view.Address)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "id.json", "keypair file to write")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")

	return cmd
}

// NewAddressCommand creates the address command.
func NewAddressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address <keyfile>",
		Short: "Print the address of a keypair file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := keys.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load key", err)
			}
			view := KeyView{Address: keys.Address(priv).String(), Path: args[0]}
			return rootOpts.formatter(cmd).Emit(view, func(w io.Writer) {
				fmt.Fprintln(w, view.Address)
			})
		},
	}
}
