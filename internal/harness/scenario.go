package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Scenario defines a conformance test scenario: a set of funded
// principals, a sequence of signed instructions and the assertions that
// must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Principals maps each named key holder to its genesis balance.
	// Zero means the principal exists but is never funded.
	Principals map[string]uint64 `yaml:"principals"`

	// StartTime is the first timestamp handed out. Default: 1700000000.
	StartTime int64 `yaml:"start_time,omitempty"`

	// ProgramID overrides the messaging program id (base58).
	ProgramID string `yaml:"program_id,omitempty"`

	// Rent overrides the deposit schedule.
	Rent *RentOverride `yaml:"rent,omitempty"`

	// Steps run in order, one entry (or rejection) each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// RentOverride replaces the default deposit schedule.
type RentOverride struct {
	Overhead        uint64 `yaml:"overhead"`
	LamportsPerByte uint64 `yaml:"lamports_per_byte"`
}

// DefaultStartTime is the first timestamp of a scenario without start_time.
const DefaultStartTime int64 = 1_700_000_000

// Step is one submitted transaction.
type Step struct {
	// Op is the instruction name (initialize_thread, send_message, ...,
	// or fund).
	Op string `yaml:"op"`

	// Signer names the principal that signs. Empty only for fund.
	Signer string `yaml:"signer,omitempty"`

	// Args are the instruction arguments.
	Args StepArgs `yaml:"args,omitempty"`

	// As binds the address the step created or acted on to a name,
	// usable later as "$name". Only bound when the step succeeds.
	As string `yaml:"as,omitempty"`

	// TxID overrides the generated transaction id.
	TxID string `yaml:"tx,omitempty"`

	// Tamper corrupts the signature after signing.
	Tamper bool `yaml:"tamper,omitempty"`

	// Expect checks the step's outcome. If nil, any outcome is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// StepArgs holds every argument an instruction may take. Key-valued
// arguments accept "$name" references or base58.
type StepArgs struct {
	Target       string `yaml:"target,omitempty"`
	ParticipantB string `yaml:"participant_b,omitempty"`
	// ThreadID is a decimal number (stored big-endian in the last eight
	// bytes) or 64 hex characters.
	ThreadID     string `yaml:"thread_id,omitempty"`
	ChannelName  string `yaml:"channel_name,omitempty"`
	MessageIndex uint32 `yaml:"message_index,omitempty"`
	Content      string `yaml:"content,omitempty"`
	Recipient    string `yaml:"recipient,omitempty"`
	Lamports     uint64 `yaml:"lamports,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Status is "ok", a program or ledger error code, or a reject code.
	Status string `yaml:"status"`

	// Logs must each appear among the step's log lines. "$name"
	// references are expanded to base58 first.
	Logs []string `yaml:"logs,omitempty"`
}

// Assertion validates the final ledger or trace.
type Assertion struct {
	// Type specifies the assertion type (see the Assert* constants).
	Type string `yaml:"type"`

	// Address is a "$name" reference or base58 key (account, absent,
	// balance).
	Address string `yaml:"address,omitempty"`

	// Expect contains expected record fields (account). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Lamports is the expected balance (balance).
	Lamports *uint64 `yaml:"lamports,omitempty"`

	// Op and Status select trace events (trace_count).
	Op     string `yaml:"op,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of events (trace_count) or entries
	// (chain_valid, when non-zero).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected order of first occurrences (trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertAccount    = "account"
	AssertAbsent     = "absent"
	AssertBalance    = "balance"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertChainValid = "chain_valid"
	AssertReplay     = "replay"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.StartTime == 0 {
		scenario.StartTime = DefaultStartTime
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// step and assertion is well formed. References to names bound by "as"
// are only checked at run time.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Principals) == 0 {
		return fmt.Errorf("principals map is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.ProgramID != "" {
		if _, err := ir.ParsePubkey(s.ProgramID); err != nil {
			return fmt.Errorf("program_id: %w", err)
		}
	}

	bound := map[string]bool{}
	for name := range s.Principals {
		if name == "" || strings.HasPrefix(name, "$") {
			return fmt.Errorf("invalid principal name %q", name)
		}
		bound[name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(step, s.Principals); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.As != "" {
			if bound[step.As] {
				return fmt.Errorf("steps[%d]: name %q is already bound", i, step.As)
			}
			bound[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, principals map[string]uint64) error {
	op := ir.Op(step.Op)
	if !op.Valid() {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if op == ir.OpFund {
		if step.Signer != "" {
			// A signed fund is legal input (it fails on the ledger) but
			// needs a signer that exists.
			if _, ok := principals[step.Signer]; !ok {
				return fmt.Errorf("unknown signer %q", step.Signer)
			}
		}
		if step.Args.Recipient == "" {
			return fmt.Errorf("fund requires recipient")
		}
		return nil
	}
	if step.Signer == "" {
		return fmt.Errorf("%s requires a signer", step.Op)
	}
	if _, ok := principals[step.Signer]; !ok {
		return fmt.Errorf("unknown signer %q", step.Signer)
	}

	required := map[ir.Op][]string{
		ir.OpInitializeThread:  {step.Args.ParticipantB, step.Args.ThreadID},
		ir.OpInitializeChannel: {step.Args.ChannelName},
		ir.OpSendMessage:       {step.Args.Target},
		ir.OpSendBroadcast:     {step.Args.Target},
		ir.OpSubscribeChannel:  {step.Args.Target},
		ir.OpCloseThread:       {step.Args.Target, step.Args.Recipient},
		ir.OpCloseChannel:      {step.Args.Target, step.Args.Recipient},
	}
	for _, v := range required[op] {
		if v == "" {
			return fmt.Errorf("%s is missing a required argument", step.Op)
		}
	}
	if step.Expect != nil && step.Expect.Status == "" {
		return fmt.Errorf("expect requires status")
	}
	return nil
}

// validateAssertion checks assertion-specific required fields.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertAccount:
		if a.Address == "" {
			return fmt.Errorf("account assertion requires address")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("account assertion requires expect")
		}
	case AssertAbsent:
		if a.Address == "" {
			return fmt.Errorf("absent assertion requires address")
		}
	case AssertBalance:
		if a.Address == "" || a.Lamports == nil {
			return fmt.Errorf("balance assertion requires address and lamports")
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("trace_count assertion requires op")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count assertion requires non-negative count")
		}
	case AssertTraceOrder:
		if len(a.Ops) < 2 {
			return fmt.Errorf("trace_order assertion requires at least 2 ops")
		}
	case AssertChainValid, AssertReplay:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// principalNames returns the principal names in sorted order, which is
// also the genesis funding order.
func (s *Scenario) principalNames() []string {
	names := make([]string, 0, len(s.Principals))
	for name := range s.Principals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
