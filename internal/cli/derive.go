package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/pda"
)

// DeriveOptions holds flags for the derive commands.
type DeriveOptions struct {
	*RootOptions
	ProgramID string
}

// DerivedAddress is the output of the derive commands.
type DerivedAddress struct {
	Record    string `json:"record"`
	Address   string `json:"address"`
	Bump      uint8  `json:"bump"`
	ProgramID string `json:"program_id"`
}

// NewDeriveCommand creates the derive command group. Derivation is pure:
// no ledger is opened.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Compute record addresses from public inputs",
		Long: `Compute the program-derived address of a thread, channel or
subscription. The program id comes from --program, else the config.

Examples:
  ledgermsg derive thread <participant-a> <participant-b> 1
  ledgermsg derive channel <owner> news
  ledgermsg derive subscription <channel> <subscriber>`,
	}
	cmd.PersistentFlags().StringVar(&opts.ProgramID, "program", "", "program id (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "thread <participant-a> <participant-b> <thread-id>",
		Short: "Derive a message thread address",
		Long: `Derive a message thread address. The thread id is hex, left-padded
with zeros to 32 bytes ("1" is 0x00...01).`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseKey("participant-a", args[0])
			if err != nil {
				return err
			}
			b, err := parseKey("participant-b", args[1])
			if err != nil {
				return err
			}
			id, err := ir.ParseThreadID(args[2])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid thread id", err)
			}
			return opts.derive(cmd, ir.RecordThread, func(programID ir.Pubkey) (ir.Pubkey, uint8, error) {
				return pda.ThreadAddress(programID, a, b, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "channel <owner> <name>",
		Short: "Derive a broadcast channel address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseKey("owner", args[0])
			if err != nil {
				return err
			}
			return opts.derive(cmd, ir.RecordChannel, func(programID ir.Pubkey) (ir.Pubkey, uint8, error) {
				return pda.ChannelAddress(programID, owner, args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "subscription <channel> <subscriber>",
		Short: "Derive a channel subscription address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := parseKey("channel", args[0])
			if err != nil {
				return err
			}
			subscriber, err := parseKey("subscriber", args[1])
			if err != nil {
				return err
			}
			return opts.derive(cmd, ir.RecordSubscription, func(programID ir.Pubkey) (ir.Pubkey, uint8, error) {
				return pda.SubscriptionAddress(programID, channel, subscriber)
			})
		},
	})

	return cmd
}

func (o *DeriveOptions) programID() (ir.Pubkey, error) {
	if o.ProgramID != "" {
		return parseKey("program id", o.ProgramID)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return ir.Pubkey{}, err
	}
	id, err := cfg.ProgramID()
	if err != nil {
		return ir.Pubkey{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return id, nil
}

func (o *DeriveOptions) derive(cmd *cobra.Command, record string, fn func(ir.Pubkey) (ir.Pubkey, uint8, error)) error {
	programID, err := o.programID()
	if err != nil {
		return err
	}
	addr, bump, err := fn(programID)
	if err != nil {
		return WrapExitError(ExitCommandError, "derivation failed", err)
	}
	view := DerivedAddress{Record: record, Address: addr.String(), Bump: bump, ProgramID: programID.String()}
	return o.formatter(cmd).Emit(view, func(w io.Writer) {
		fmt.Fprintf(w, "%s (bump %d)\n", view.Address, view.Bump)
	})
}
