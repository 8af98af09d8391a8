package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/store"
)

// AssertionError represents a failed assertion with context.
type AssertionError struct {
	Type     string
	Expected any
	Actual   any
	Detail   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("%s assertion failed: expected %v, got %v", e.Type, e.Expected, e.Actual)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// evaluateAssertions runs every assertion and returns one message per
// failure. An empty slice means all assertions passed.
func (r *runner) evaluateAssertions(ctx context.Context) []string {
	var errs []string
	for i, a := range r.scenario.Assertions {
		if err := r.evaluate(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func (r *runner) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertAccount:
		return r.assertAccount(ctx, a)
	case AssertAbsent:
		return r.assertAbsent(ctx, a)
	case AssertBalance:
		return r.assertBalance(ctx, a)
	case AssertTraceCount:
		return assertTraceCount(r.result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.result.Trace, a.Ops)
	case AssertChainValid:
		return r.assertChainValid(ctx, a)
	case AssertReplay:
		return r.assertReplay(ctx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (r *runner) assertAccount(ctx context.Context, a Assertion) error {
	addr, err := r.resolve(a.Address)
	if err != nil {
		return err
	}
	acct, ok, err := r.store.GetAccount(ctx, addr)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{Type: AssertAccount, Expected: "account", Actual: "absent", Detail: a.Address}
	}
	fields, err := r.accountFields(acct)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		got, present := fields[k]
		if !present {
			return &AssertionError{Type: AssertAccount, Expected: k, Actual: "no such field", Detail: a.Address}
		}
		if !r.fieldEqual(a.Expect[k], got) {
			return &AssertionError{
				Type:     AssertAccount,
				Expected: a.Expect[k],
				Actual:   got,
				Detail:   fmt.Sprintf("%s.%s", a.Address, k),
			}
		}
	}
	return nil
}

// fieldEqual compares a YAML value with a record field. Both sides go
// through reference expansion, so "$alice" and alice's base58 key match.
func (r *runner) fieldEqual(want any, got ir.Value) bool {
	w := fmt.Sprint(want)
	g := fmt.Sprint(got)
	if s, ok := want.(string); ok {
		w = r.expand(s)
	}
	if s, ok := got.(ir.Str); ok {
		g = r.expand(string(s))
	}
	return w == g
}

func (r *runner) assertAbsent(ctx context.Context, a Assertion) error {
	addr, err := r.resolve(a.Address)
	if err != nil {
		return err
	}
	_, ok, err := r.store.GetAccount(ctx, addr)
	if err != nil {
		return err
	}
	if ok {
		return &AssertionError{Type: AssertAbsent, Expected: "absent", Actual: "account", Detail: a.Address}
	}
	return nil
}

func (r *runner) assertBalance(ctx context.Context, a Assertion) error {
	addr, err := r.resolve(a.Address)
	if err != nil {
		return err
	}
	acct, ok, err := r.store.GetAccount(ctx, addr)
	if err != nil {
		return err
	}
	var got uint64
	if ok {
		got = acct.Lamports
	}
	if got != *a.Lamports {
		return &AssertionError{Type: AssertBalance, Expected: *a.Lamports, Actual: got, Detail: a.Address}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op == a.Op && (a.Status == "" || ev.Status == a.Status) {
			count++
		}
	}
	if count != a.Count {
		detail := a.Op
		if a.Status != "" {
			detail += " with status " + a.Status
		}
		return &AssertionError{Type: AssertTraceCount, Expected: a.Count, Actual: count, Detail: detail}
	}
	return nil
}

// assertTraceOrder checks that the first occurrence of each op appears
// in the given order.
func assertTraceOrder(trace []TraceEvent, ops []string) error {
	first := make(map[string]int, len(ops))
	for i, ev := range trace {
		if _, seen := first[ev.Op]; !seen {
			first[ev.Op] = i
		}
	}
	prev := -1
	for _, op := range ops {
		pos, ok := first[op]
		if !ok {
			return &AssertionError{Type: AssertTraceOrder, Expected: op, Actual: "not in trace"}
		}
		if pos < prev {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: strings.Join(ops, " < "),
				Actual:   fmt.Sprintf("%s at step %d", op, pos),
			}
		}
		prev = pos
	}
	return nil
}

func (r *runner) assertChainValid(ctx context.Context, a Assertion) error {
	report, err := r.store.VerifyChain(ctx)
	if err != nil {
		return &AssertionError{Type: AssertChainValid, Expected: "valid chain", Actual: err.Error()}
	}
	if a.Count != 0 && report.Entries != int64(a.Count) {
		return &AssertionError{Type: AssertChainValid, Expected: a.Count, Actual: report.Entries, Detail: "entries"}
	}
	return nil
}

func (r *runner) assertReplay(ctx context.Context) error {
	dst, err := store.Open(":memory:")
	if err != nil {
		return err
	}
	defer dst.Close()

	report, err := engine.Replay(ctx, r.store, dst, r.prog, engine.WithRent(r.rent))
	var diverged *engine.DivergenceError
	if errors.As(err, &diverged) {
		return &AssertionError{Type: AssertReplay, Expected: diverged.Want, Actual: diverged.Got, Detail: fmt.Sprintf("seq %d", diverged.Seq)}
	}
	if err != nil {
		return err
	}

	root, err := r.store.StateRoot(ctx)
	if err != nil {
		return err
	}
	if root != report.StateRoot {
		return &AssertionError{Type: AssertReplay, Expected: root, Actual: report.StateRoot, Detail: "state root"}
	}
	return nil
}
