package harness

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
	"github.com/roach88/ledgermsg/internal/testutil"
)

// runner is the state of one scenario execution.
type runner struct {
	scenario *Scenario
	store    *store.Store
	engine   *engine.Engine
	prog     *program.Program
	rent     ledger.Rent
	result   *Result

	// names resolves "$name" references; addrs is its inverse.
	names map[string]ir.Pubkey
	addrs map[ir.Pubkey]string
	// bound lists names created by "as", in binding order.
	bound []string
}

// Run executes a scenario against a fresh in-memory ledger and evaluates
// its assertions.
//
// The returned error is reserved for problems with the scenario itself
// (unresolvable references, storage failures). Failed expectations and
// assertions are reported in Result.Errors with Pass set to false.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	r, err := newRunner(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer r.store.Close()

	for i, step := range scenario.Steps {
		if err := r.runStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	if err := r.captureState(ctx); err != nil {
		return nil, err
	}
	for _, msg := range r.evaluateAssertions(ctx) {
		r.result.AddError(msg)
	}
	return r.result, nil
}

func newRunner(ctx context.Context, s *Scenario) (*runner, error) {
	programID := program.DefaultID
	if s.ProgramID != "" {
		id, err := ir.ParsePubkey(s.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("program_id: %w", err)
		}
		programID = id
	}
	rent := ledger.DefaultRent
	if s.Rent != nil {
		rent = ledger.Rent{Overhead: s.Rent.Overhead, LamportsPerByte: s.Rent.LamportsPerByte}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	r := &runner{
		scenario: s,
		store:    st,
		prog:     program.New(programID),
		rent:     rent,
		result:   NewResult(),
		names:    make(map[string]ir.Pubkey),
		addrs:    make(map[ir.Pubkey]string),
	}
	r.engine, err = engine.New(ctx, st, r.prog,
		engine.WithTimeOracle(testutil.NewDeterministicTime(s.StartTime, 1)),
		engine.WithRent(rent),
		engine.WithTxIDGenerator(engine.NewFixedGenerator("fund")),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	var allocs []engine.Allocation
	for _, name := range s.principalNames() {
		key := testutil.Pubkey(name)
		r.bind(name, key)
		if balance := s.Principals[name]; balance > 0 {
			allocs = append(allocs, engine.Allocation{Address: key, Lamports: balance})
		}
	}
	if err := r.engine.Genesis(ctx, allocs); err != nil {
		st.Close()
		return nil, err
	}
	return r, nil
}

func (r *runner) bind(name string, key ir.Pubkey) {
	r.names[name] = key
	if _, taken := r.addrs[key]; !taken {
		r.addrs[key] = name
	}
}

// resolve turns a "$name" reference or base58 string into a key.
func (r *runner) resolve(ref string) (ir.Pubkey, error) {
	if name, ok := strings.CutPrefix(ref, "$"); ok {
		key, found := r.names[name]
		if !found {
			return ir.Pubkey{}, fmt.Errorf("unbound reference %q", ref)
		}
		return key, nil
	}
	return ir.ParsePubkey(ref)
}

// optional resolves ref, treating the empty string as the zero key.
func (r *runner) optional(ref string) (ir.Pubkey, error) {
	if ref == "" {
		return ir.Pubkey{}, nil
	}
	return r.resolve(ref)
}

// render shows a key as "$name" when it is known.
func (r *runner) render(key ir.Pubkey) string {
	if name, ok := r.addrs[key]; ok {
		return "$" + name
	}
	return key.String()
}

// expand replaces every "$name" in text with the base58 key. Longer names
// are replaced first so "$chan" does not clobber "$channel".
func (r *runner) expand(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		text = strings.ReplaceAll(text, "$"+name, r.names[name].String())
	}
	return text
}

// parseThreadID accepts a decimal number or 64 hex characters.
func parseThreadID(s string) (ir.ThreadID, error) {
	if len(s) == 2*len(ir.ThreadID{}) {
		return ir.ParseThreadID(s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return ir.ThreadID{}, fmt.Errorf("thread_id %q: want a decimal number or 64 hex characters", s)
	}
	var id ir.ThreadID
	binary.BigEndian.PutUint64(id[len(id)-8:], n)
	return id, nil
}

// instruction builds the ledger instruction for a step.
func (r *runner) instruction(step Step) (ir.Instruction, error) {
	a := step.Args
	ix := ir.Instruction{
		Op:           ir.Op(step.Op),
		ChannelName:  a.ChannelName,
		MessageIndex: a.MessageIndex,
		Content:      []byte(a.Content),
		Lamports:     a.Lamports,
	}
	var err error
	if ix.Target, err = r.optional(a.Target); err != nil {
		return ix, fmt.Errorf("target: %w", err)
	}
	if ix.ParticipantB, err = r.optional(a.ParticipantB); err != nil {
		return ix, fmt.Errorf("participant_b: %w", err)
	}
	if ix.Recipient, err = r.optional(a.Recipient); err != nil {
		return ix, fmt.Errorf("recipient: %w", err)
	}
	if a.ThreadID != "" {
		if ix.ThreadID, err = parseThreadID(a.ThreadID); err != nil {
			return ix, err
		}
	}
	return ix, nil
}

// runStep submits one step and records its trace event. Expectation
// mismatches are recorded on the result, not returned.
func (r *runner) runStep(ctx context.Context, i int, step Step) error {
	ix, err := r.instruction(step)
	if err != nil {
		return err
	}

	var receipt engine.Receipt
	if step.Signer == "" {
		receipt, err = r.engine.Fund(ctx, ix.Recipient, ix.Lamports)
	} else {
		txID := step.TxID
		if txID == "" {
			txID = fmt.Sprintf("step-%d", i)
		}
		env := ir.Envelope{ID: txID, Instruction: ix}
		if serr := env.Sign(testutil.Keypair(step.Signer)); serr != nil {
			return serr
		}
		if step.Tamper {
			env.Signature[0] ^= 0xff
		}
		receipt, err = r.engine.Execute(ctx, env)
	}

	ev := TraceEvent{Step: i, Op: step.Op, Signer: step.Signer}
	var rejected *engine.RejectError
	switch {
	case errors.As(err, &rejected):
		ev.Status = string(rejected.Code)
	case err != nil:
		return err
	default:
		ev.Status = receipt.Entry.Status
		ev.Seq = receipt.Entry.Seq
		ev.Logs = receipt.Logs
		if step.As != "" && receipt.Entry.OK() {
			r.bind(step.As, receipt.Address)
			r.bound = append(r.bound, step.As)
		}
	}
	r.result.AddTrace(ev)

	if step.Expect != nil {
		r.checkExpect(i, step, ev)
	}
	return nil
}

func (r *runner) checkExpect(i int, step Step, ev TraceEvent) {
	if ev.Status != step.Expect.Status {
		r.result.AddError(fmt.Sprintf("step %d (%s): expected status %q, got %q", i, step.Op, step.Expect.Status, ev.Status))
		return
	}
	for _, want := range step.Expect.Logs {
		want = r.expand(want)
		found := false
		for _, line := range ev.Logs {
			if line == want {
				found = true
				break
			}
		}
		if !found {
			r.result.AddError(fmt.Sprintf("step %d (%s): log line %q not emitted", i, step.Op, want))
		}
	}
}

// captureState records the final fields of every bound address.
func (r *runner) captureState(ctx context.Context) error {
	for _, name := range r.bound {
		acct, ok, err := r.store.GetAccount(ctx, r.names[name])
		if err != nil {
			return err
		}
		if !ok {
			r.result.State[name] = "absent"
			continue
		}
		fields, err := r.accountFields(acct)
		if err != nil {
			return fmt.Errorf("state of %s: %w", name, err)
		}
		r.result.State[name] = fields
	}
	return nil
}

// lamportsValue renders a balance as a canonical integer, or as a decimal
// string once it no longer fits in an int64.
func lamportsValue(n uint64) ir.Value {
	if n > math.MaxInt64 {
		return ir.Str(strconv.FormatUint(n, 10))
	}
	return ir.Int(int64(n))
}

// accountFields flattens an account and its decoded record into one
// canonical object. Keys render as "$name" when known.
func (r *runner) accountFields(acct ir.Account) (ir.Object, error) {
	obj := ir.Object{
		"lamports": lamportsValue(acct.Lamports),
	}
	if len(acct.Data) == 0 {
		obj["type"] = ir.Str("system")
		return obj, nil
	}

	kind, record, err := ir.DecodeRecord(acct.Data)
	if err != nil {
		return nil, err
	}
	obj["type"] = ir.Str(kind)
	switch rec := record.(type) {
	case ir.Thread:
		obj["participant_a"] = ir.Str(r.render(rec.ParticipantA))
		obj["participant_b"] = ir.Str(r.render(rec.ParticipantB))
		obj["thread_id"] = ir.Str(rec.ThreadID.String())
		obj["message_count"] = ir.Int(rec.MessageCount)
		obj["created_at"] = ir.Int(rec.CreatedAt)
		obj["last_message_at"] = ir.Int(rec.LastMessageAt)
	case ir.Channel:
		obj["owner"] = ir.Str(r.render(rec.Owner))
		obj["channel_name"] = ir.Str(rec.Name)
		obj["message_count"] = ir.Int(rec.MessageCount)
		obj["subscriber_count"] = ir.Int(rec.SubscriberCount)
		obj["created_at"] = ir.Int(rec.CreatedAt)
		obj["last_broadcast_at"] = ir.Int(rec.LastBroadcastAt)
	case ir.Subscription:
		obj["subscriber"] = ir.Str(r.render(rec.Subscriber))
		obj["channel"] = ir.Str(r.render(rec.Channel))
		obj["subscribed_at"] = ir.Int(rec.SubscribedAt)
		obj["last_read_index"] = ir.Int(rec.LastReadIndex)
	}
	return obj, nil
}
