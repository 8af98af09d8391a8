package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
)

// Receipt describes one appended entry.
type Receipt struct {
	Entry ir.Entry `json:"entry"`
	// Address is the record the instruction created or acted on.
	Address ir.Pubkey `json:"address"`
	// Logs are the program's log lines. They are not persisted.
	Logs []string `json:"logs"`
	// Writes are the account effects applied (empty for failed entries).
	Writes []ir.AccountWrite `json:"-"`
	// Err is the instruction failure recorded in Entry.Status, if any.
	Err error `json:"-"`
}

// Engine is the single writer of the ledger.
//
// Every envelope goes through the same path: verify the signature, reject
// duplicate tx ids, run the program against a copy-on-write overlay, then
// append the entry (and, on success, its account writes) in one store
// transaction. A failed instruction still appends an entry, with its
// error code as status and no effects.
//
// Thread-safety model:
//   - Execute(), Fund(): safe from any goroutine; serialized internally
//   - Submit(): safe from any goroutine; results arrive via Run()
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	store   *store.Store
	prog    *program.Program
	clock   *Clock
	oracle  ledger.TimeOracle
	rent    ledger.Rent
	txids   TxIDGenerator
	metrics *Metrics
	queue   *requestQueue

	mu       sync.Mutex
	headID   string
	lastTime int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeOracle sets the time source. Default: wall clock.
func WithTimeOracle(o ledger.TimeOracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithRent sets the storage deposit schedule. Default: ledger.DefaultRent.
func WithRent(r ledger.Rent) Option {
	return func(e *Engine) { e.rent = r }
}

// WithTxIDGenerator sets the id source for locally built entries (Fund).
// Default: UUIDv7Generator.
func WithTxIDGenerator(g TxIDGenerator) Option {
	return func(e *Engine) { e.txids = g }
}

// WithMetrics records executions into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over s, resuming after the last stored entry.
func New(ctx context.Context, s *store.Store, prog *program.Program, opts ...Option) (*Engine, error) {
	head, err := s.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		store:    s,
		prog:     prog,
		clock:    NewClockAt(head.Seq),
		oracle:   ledger.SystemTime{},
		rent:     ledger.DefaultRent,
		txids:    UUIDv7Generator{},
		queue:    newRequestQueue(),
		headID:   head.ID,
		lastTime: head.Timestamp,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.setSeq(head.Seq)

	slog.Debug("engine opened",
		"seq", head.Seq,
		"head", head.ID,
		"program", prog.ID(),
	)
	return e, nil
}

// Program returns the program the engine executes.
func (e *Engine) Program() *program.Program {
	return e.prog
}

// Rent returns the deposit schedule in force.
func (e *Engine) Rent() ledger.Rent {
	return e.rent
}

// Head returns the seq and id of the last appended entry.
func (e *Engine) Head() (int64, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Current(), e.headID
}

// NewTxID returns a fresh transaction id from the engine's generator.
func (e *Engine) NewTxID() string {
	return e.txids.Generate()
}

// Execute verifies and executes one signed envelope.
//
// The returned error is non-nil only when the envelope was rejected
// (RejectError) or storage failed; nothing is appended in either case.
// An instruction failure is not an error here: it is appended and
// reported in Receipt.Err.
func (e *Engine) Execute(ctx context.Context, env ir.Envelope) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execute(ctx, env, e.now())
}

// now reads the time oracle, never going backwards past the last entry.
func (e *Engine) now() int64 {
	t := e.oracle.Now()
	if t < e.lastTime {
		return e.lastTime
	}
	return t
}

func (e *Engine) execute(ctx context.Context, env ir.Envelope, now int64) (Receipt, error) {
	start := time.Now()
	op := string(env.Instruction.Op)

	if env.ID == "" {
		return Receipt{}, e.reject(ErrCodeMalformed, env.ID, "missing transaction id")
	}
	if err := env.Verify(); err != nil {
		return Receipt{}, e.reject(ErrCodeInvalidSignature, env.ID, err.Error())
	}
	if err := e.checkDuplicate(ctx, env.ID); err != nil {
		return Receipt{}, err
	}

	ov := ledger.NewOverlay(ctx, e.store)
	lc := ledger.NewContext(ov, e.prog.ID(), env.Signer, now, e.rent)
	addr, execErr := e.prog.Execute(lc, env.Instruction)

	entry := ir.Entry{
		TxID:        env.ID,
		Signer:      env.Signer,
		Instruction: env.Instruction.Op,
		Args:        env.Instruction.Args(),
		Signature:   env.Signature,
		Status:      ir.StatusOK,
		Timestamp:   now,
	}
	var writes []ir.AccountWrite
	if execErr != nil {
		status, ok := classify(execErr)
		if !ok {
			return Receipt{}, fmt.Errorf("execute %s (tx=%s): %w", op, env.ID, execErr)
		}
		entry.Status = status
		entry.Message = execErr.Error()
	} else {
		writes = ov.Writes()
	}

	receipt, err := e.append(ctx, entry, writes)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Address = addr
	receipt.Logs = lc.Logs()
	receipt.Err = execErr

	e.metrics.observe(op, entry.Status, time.Since(start).Seconds(), receipt.Entry.Seq)
	return receipt, nil
}

func (e *Engine) checkDuplicate(ctx context.Context, txID string) error {
	seen, err := e.store.HasTx(ctx, txID)
	if err != nil {
		return err
	}
	if seen {
		return e.reject(ErrCodeDuplicateTransaction, txID, "transaction already on the ledger")
	}
	return nil
}

func (e *Engine) reject(code RejectCode, txID, msg string) error {
	e.metrics.reject(code)
	slog.Debug("envelope rejected", "code", code, "tx", txID, "reason", msg)
	return &RejectError{Code: code, TxID: txID, Message: msg}
}

// append chains entry onto the head, commits it with writes, and advances
// the clock only once the commit has landed.
func (e *Engine) append(ctx context.Context, entry ir.Entry, writes []ir.AccountWrite) (Receipt, error) {
	effects, err := ir.EffectsHash(writes)
	if err != nil {
		return Receipt{}, err
	}
	entry.Seq = e.clock.Current() + 1
	entry.PrevID = e.headID
	entry.EffectsHash = effects
	if entry.ID, err = ir.EntryID(entry); err != nil {
		return Receipt{}, err
	}

	if err := e.store.Commit(ctx, entry, writes); err != nil {
		return Receipt{}, fmt.Errorf("append entry: %w", err)
	}
	e.clock.Next()
	e.headID = entry.ID
	e.lastTime = entry.Timestamp

	slog.Info("entry appended",
		"seq", entry.Seq,
		"tx", entry.TxID,
		"instruction", entry.Instruction,
		"signer", entry.Signer.Short(),
		"status", entry.Status,
	)
	return Receipt{Entry: entry, Writes: writes}, nil
}

// Submit queues an envelope for the Run loop and returns a channel that
// receives exactly one Result.
func (e *Engine) Submit(env ir.Envelope) <-chan Result {
	reply := make(chan Result, 1)
	if !e.queue.Enqueue(request{env: env, reply: reply}) {
		reply <- Result{Err: &RejectError{Code: ErrCodeStopped, TxID: env.ID, Message: "engine stopped"}}
	}
	return reply
}

// Run executes queued envelopes in FIFO order until ctx is cancelled or
// Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		if r, ok := e.queue.TryDequeue(); ok {
			receipt, err := e.Execute(ctx, r.env)
			r.reply <- Result{Receipt: receipt, Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			for _, r := range e.queue.drain() {
				r.reply <- Result{Err: &RejectError{Code: ErrCodeStopped, TxID: r.env.ID, Message: "engine stopped"}}
			}
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so this case
			// fires immediately once stopped.
			if e.queue.Len() == 0 && e.stopped() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once queued envelopes are done.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}
