package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/keys"
)

// TxOptions holds flags shared by every signed transaction command.
type TxOptions struct {
	*RootOptions
	KeyFile string // signer keypair file
	TxID    string // explicit transaction id; default UUIDv7
	Target  string // expected record address for create operations
}

// txDef describes one transaction command.
type txDef struct {
	use    string
	short  string
	long   string
	nargs  int
	target bool // accepts --target
	build  func(opts *TxOptions, args []string) (ir.Instruction, error)
}

func newTransactionCommands(rootOpts *RootOptions) []*cobra.Command {
	defs := []txDef{
		{
			use:   "init-thread <participant-b> <thread-id>",
			short: "Create a message thread (signer is participant A and pays the deposit)",
			long: `Create the thread between the signer and participant B. The thread
id is hex, left-padded to 32 bytes; different ids give the same pair
independent threads.`,
			nargs:  2,
			target: true,
			build: func(opts *TxOptions, args []string) (ir.Instruction, error) {
				b, err := parseKey("participant-b", args[0])
				if err != nil {
					return ir.Instruction{}, err
				}
				id, err := ir.ParseThreadID(args[1])
				if err != nil {
					return ir.Instruction{}, WrapExitError(ExitCommandError, "invalid thread id", err)
				}
				target, err := opts.target()
				return ir.Instruction{Op: ir.OpInitializeThread, ParticipantB: b, ThreadID: id, Target: target}, err
			},
		},
		{
			use:   "send <thread> <index> <content>",
			short: "Send the next message on a thread",
			nargs: 3,
			build: func(_ *TxOptions, args []string) (ir.Instruction, error) {
				return indexedMessage(ir.OpSendMessage, args)
			},
		},
		{
			use:    "init-channel <name>",
			short:  "Create a broadcast channel owned by the signer",
			nargs:  1,
			target: true,
			build: func(opts *TxOptions, args []string) (ir.Instruction, error) {
				target, err := opts.target()
				return ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: args[0], Target: target}, err
			},
		},
		{
			use:   "broadcast <channel> <index> <content>",
			short: "Send the next broadcast on a channel (owner only)",
			nargs: 3,
			build: func(_ *TxOptions, args []string) (ir.Instruction, error) {
				return indexedMessage(ir.OpSendBroadcast, args)
			},
		},
		{
			use:   "subscribe <channel>",
			short: "Subscribe the signer to a channel",
			nargs: 1,
			build: func(_ *TxOptions, args []string) (ir.Instruction, error) {
				ch, err := parseKey("channel", args[0])
				return ir.Instruction{Op: ir.OpSubscribeChannel, Target: ch}, err
			},
		},
		{
			use:   "close-thread <thread> <recipient>",
			short: "Close a thread and refund its deposit (participant A only)",
			nargs: 2,
			build: func(_ *TxOptions, args []string) (ir.Instruction, error) {
				return closeRecord(ir.OpCloseThread, args)
			},
		},
		{
			use:   "close-channel <channel> <recipient>",
			short: "Close a channel and refund its deposit (owner only)",
			nargs: 2,
			build: func(_ *TxOptions, args []string) (ir.Instruction, error) {
				return closeRecord(ir.OpCloseChannel, args)
			},
		},
	}

	cmds := make([]*cobra.Command, 0, len(defs))
	for _, def := range defs {
		cmds = append(cmds, newTxCommand(rootOpts, def))
	}
	return cmds
}

func newTxCommand(rootOpts *RootOptions, def txDef) *cobra.Command {
	opts := &TxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   def.use,
		Short: def.short,
		Long:  def.long,
		Args:  cobra.ExactArgs(def.nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransaction(cmd.Context(), cmd, opts, def, args)
		},
	}

	cmd.Flags().StringVarP(&opts.KeyFile, "key", "k", "", "signer keypair file (required)")
	_ = cmd.MarkFlagRequired("key")
	cmd.Flags().StringVar(&opts.TxID, "tx", "", "transaction id (default: a fresh UUIDv7)")
	if def.target {
		cmd.Flags().StringVar(&opts.Target, "target", "", "expected record address; must match the derivation")
	}
	return cmd
}

func runTransaction(ctx context.Context, cmd *cobra.Command, opts *TxOptions, def txDef, args []string) error {
	priv, err := keys.Load(opts.KeyFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load signer key", err)
	}
	ix, err := def.build(opts, args)
	if err != nil {
		return err
	}

	h, err := openLedger(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer h.Close()

	txID := opts.TxID
	if txID == "" {
		txID = h.engine.NewTxID()
	}
	env := ir.Envelope{ID: txID, Instruction: ix}
	if err := env.Sign(priv); err != nil {
		return WrapExitError(ExitCommandError, "failed to sign", err)
	}

	out := opts.formatter(cmd)
	out.VerboseLog("submitting %s as %s (tx %s)", ix.Op, env.Signer, txID)
	receipt, err := h.engine.Execute(ctx, env)
	if err != nil {
		return reportReject(out, err)
	}
	return reportReceipt(out, receipt)
}

func (o *TxOptions) target() (ir.Pubkey, error) {
	if o.Target == "" {
		return ir.Pubkey{}, nil
	}
	return parseKey("target", o.Target)
}

func indexedMessage(op ir.Op, args []string) (ir.Instruction, error) {
	target, err := parseKey("target", args[0])
	if err != nil {
		return ir.Instruction{}, err
	}
	index, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return ir.Instruction{}, WrapExitError(ExitCommandError, "invalid message index", err)
	}
	return ir.Instruction{Op: op, Target: target, MessageIndex: uint32(index), Content: []byte(args[2])}, nil
}

func closeRecord(op ir.Op, args []string) (ir.Instruction, error) {
	target, err := parseKey("target", args[0])
	if err != nil {
		return ir.Instruction{}, err
	}
	recipient, err := parseKey("recipient", args[1])
	if err != nil {
		return ir.Instruction{}, err
	}
	return ir.Instruction{Op: op, Target: target, Recipient: recipient}, nil
}
