package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/store"
)

// AccountView is the output of the show command.
type AccountView struct {
	Address  string `json:"address"`
	Owner    string `json:"owner"`
	Lamports uint64 `json:"lamports"`
	Space    int    `json:"space"`
	Type     string `json:"type,omitempty"`
	Record   any    `json:"record,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Show an account and its decoded record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseKey("address", args[0])
			if err != nil {
				return err
			}
			_, st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			out := rootOpts.formatter(cmd)
			acct, ok, err := st.GetAccount(cmd.Context(), addr)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read account", err)
			}
			if !ok {
				if ferr := out.Error("AccountNotFound", "no account at "+addr.String(), nil); ferr != nil {
					return ferr
				}
				return NewExitError(ExitFailure, "account not found")
			}

			view := newAccountView(acct)
			return out.Emit(view, view.writeText)
		},
	}
}

// newAccountView decodes the record held by acct, if any. Undecodable data
// is shown without a record.
func newAccountView(acct ir.Account) AccountView {
	view := AccountView{
		Address:  acct.Address.String(),
		Owner:    acct.Owner.String(),
		Lamports: acct.Lamports,
		Space:    len(acct.Data),
	}
	if len(acct.Data) > 0 {
		if kind, record, err := ir.DecodeRecord(acct.Data); err == nil {
			view.Type = kind
			view.Record = record
		}
	}
	return view
}

func (v AccountView) writeText(w io.Writer) {
	fmt.Fprintf(w, "address:  %s\n", v.Address)
	fmt.Fprintf(w, "owner:    %s\n", v.Owner)
	fmt.Fprintf(w, "lamports: %d\n", v.Lamports)
	fmt.Fprintf(w, "space:    %d\n", v.Space)
	switch rec := v.Record.(type) {
	case ir.Thread:
		fmt.Fprintf(w, "%s\n", v.Type)
		fmt.Fprintf(w, "  participant_a:   %s\n", rec.ParticipantA)
		fmt.Fprintf(w, "  participant_b:   %s\n", rec.ParticipantB)
		fmt.Fprintf(w, "  thread_id:       %s\n", rec.ThreadID)
		fmt.Fprintf(w, "  message_count:   %d\n", rec.MessageCount)
		fmt.Fprintf(w, "  created_at:      %d\n", rec.CreatedAt)
		fmt.Fprintf(w, "  last_message_at: %d\n", rec.LastMessageAt)
	case ir.Channel:
		fmt.Fprintf(w, "%s\n", v.Type)
		fmt.Fprintf(w, "  owner:             %s\n", rec.Owner)
		fmt.Fprintf(w, "  channel_name:      %s\n", rec.Name)
		fmt.Fprintf(w, "  message_count:     %d\n", rec.MessageCount)
		fmt.Fprintf(w, "  subscriber_count:  %d\n", rec.SubscriberCount)
		fmt.Fprintf(w, "  created_at:        %d\n", rec.CreatedAt)
		fmt.Fprintf(w, "  last_broadcast_at: %d\n", rec.LastBroadcastAt)
	case ir.Subscription:
		fmt.Fprintf(w, "%s\n", v.Type)
		fmt.Fprintf(w, "  subscriber:      %s\n", rec.Subscriber)
		fmt.Fprintf(w, "  channel:         %s\n", rec.Channel)
		fmt.Fprintf(w, "  subscribed_at:   %d\n", rec.SubscribedAt)
		fmt.Fprintf(w, "  last_read_index: %d\n", rec.LastReadIndex)
	}
}

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	From  int64
	Limit int
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List ledger entries",
		Long: `List ledger entries in seq order, including failed ones.

Examples:
  ledgermsg log
  ledgermsg log --from 10 --limit 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(opts.RootOptions)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.ReadEntries(cmd.Context(), opts.From, opts.Limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read entries", err)
			}
			return opts.formatter(cmd).Emit(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No entries.")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SEQ\tTIMESTAMP\tINSTRUCTION\tSIGNER\tSTATUS\tTX")
				for _, e := range entries {
					fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", e.Seq, e.Timestamp, e.Instruction, e.Signer.Short(), e.Status, e.TxID)
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().Int64Var(&opts.From, "from", 1, "first seq to list")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum entries to list (0 for all)")

	return cmd
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain and account table",
		Long: `Recompute every entry id and effects hash, check seq and prev_id
links, and check that folding all logged effects reproduces the account
table.

Exit codes:
  0 - Ledger is consistent
  1 - Tampering or corruption detected
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			out := rootOpts.formatter(cmd)
			report, err := st.VerifyChain(cmd.Context())
			var chainErr *store.ChainError
			if errors.As(err, &chainErr) {
				if ferr := out.Error("ChainBroken", chainErr.Error(), map[string]any{"seq": chainErr.Seq, "reason": chainErr.Reason}); ferr != nil {
					return ferr
				}
				return WrapExitError(ExitFailure, "verification failed", err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to verify", err)
			}
			return out.Emit(report, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %d entries verified (%d failed)\n", report.Entries, report.Failed)
				fmt.Fprintf(w, "head:       %s\n", report.HeadID)
				fmt.Fprintf(w, "state root: %s\n", report.StateRoot)
			})
		},
	}
}
