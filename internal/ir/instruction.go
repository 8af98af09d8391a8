package ir

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// Op names an instruction. The seven messaging operations are handled by
// the messaging program; OpFund is the ledger faucet.
type Op string

const (
	OpInitializeThread  Op = "initialize_thread"
	OpSendMessage       Op = "send_message"
	OpInitializeChannel Op = "initialize_channel"
	OpSendBroadcast     Op = "send_broadcast"
	OpSubscribeChannel  Op = "subscribe_channel"
	OpCloseThread       Op = "close_thread"
	OpCloseChannel      Op = "close_channel"
	OpFund              Op = "fund"
)

// ProgramOps lists the messaging program's entry points in declaration order.
var ProgramOps = []Op{
	OpInitializeThread,
	OpSendMessage,
	OpInitializeChannel,
	OpSendBroadcast,
	OpSubscribeChannel,
	OpCloseThread,
	OpCloseChannel,
}

// Valid reports whether op is a known instruction.
func (op Op) Valid() bool {
	if op == OpFund {
		return true
	}
	for _, known := range ProgramOps {
		if op == known {
			return true
		}
	}
	return false
}

// Argument keys used in the canonical form of an instruction.
const (
	ArgTarget       = "target"
	ArgParticipantB = "participant_b"
	ArgThreadID     = "thread_id"
	ArgChannelName  = "channel_name"
	ArgMessageIndex = "message_index"
	ArgContent      = "content"
	ArgRecipient    = "recipient"
	ArgLamports     = "lamports"
)

// Instruction is one operation plus its arguments. The signer is not part
// of the instruction; it comes from the enclosing Envelope.
//
// Target names the record acted on. For the create operations it is
// optional and, when set, must equal the derived address.
type Instruction struct {
	Op           Op
	Target       Pubkey
	ParticipantB Pubkey
	ThreadID     ThreadID
	ChannelName  string
	MessageIndex uint32
	Content      []byte
	Recipient    Pubkey
	Lamports     uint64
}

// Args returns the canonical argument object for the instruction. Only the
// arguments the operation uses are included. Byte strings (including the
// channel name) are hex so the exact bytes survive NFC normalization.
func (ix Instruction) Args() Object {
	args := Object{}
	switch ix.Op {
	case OpInitializeThread:
		args[ArgParticipantB] = Str(ix.ParticipantB.String())
		args[ArgThreadID] = Str(ix.ThreadID.String())
		if !ix.Target.IsZero() {
			args[ArgTarget] = Str(ix.Target.String())
		}
	case OpInitializeChannel:
		args[ArgChannelName] = Str(hex.EncodeToString([]byte(ix.ChannelName)))
		if !ix.Target.IsZero() {
			args[ArgTarget] = Str(ix.Target.String())
		}
	case OpSendMessage, OpSendBroadcast:
		args[ArgTarget] = Str(ix.Target.String())
		args[ArgMessageIndex] = Int(ix.MessageIndex)
		args[ArgContent] = Str(hex.EncodeToString(ix.Content))
	case OpSubscribeChannel:
		args[ArgTarget] = Str(ix.Target.String())
	case OpCloseThread, OpCloseChannel:
		args[ArgTarget] = Str(ix.Target.String())
		args[ArgRecipient] = Str(ix.Recipient.String())
	case OpFund:
		args[ArgRecipient] = Str(ix.Recipient.String())
		args[ArgLamports] = Int(int64(ix.Lamports))
	}
	return args
}

// ParseInstruction rebuilds an instruction from its canonical argument
// object. It is the inverse of Instruction.Args.
func ParseInstruction(op Op, args Object) (Instruction, error) {
	if !op.Valid() {
		return Instruction{}, fmt.Errorf("unknown instruction %q", op)
	}
	p := argParser{args: args}
	ix := Instruction{Op: op}
	switch op {
	case OpInitializeThread:
		ix.ParticipantB = p.key(ArgParticipantB)
		ix.ThreadID = p.threadID(ArgThreadID)
		ix.Target = p.optionalKey(ArgTarget)
	case OpInitializeChannel:
		name := p.hexBytes(ArgChannelName)
		if p.err == nil && !utf8.Valid(name) {
			p.err = fmt.Errorf("%s is not valid UTF-8", ArgChannelName)
		}
		ix.ChannelName = string(name)
		ix.Target = p.optionalKey(ArgTarget)
	case OpSendMessage, OpSendBroadcast:
		ix.Target = p.key(ArgTarget)
		ix.MessageIndex = p.u32(ArgMessageIndex)
		ix.Content = p.hexBytes(ArgContent)
	case OpSubscribeChannel:
		ix.Target = p.key(ArgTarget)
	case OpCloseThread, OpCloseChannel:
		ix.Target = p.key(ArgTarget)
		ix.Recipient = p.key(ArgRecipient)
	case OpFund:
		ix.Recipient = p.key(ArgRecipient)
		n := p.int(ArgLamports)
		if p.err == nil && n < 0 {
			p.err = fmt.Errorf("%s must be non-negative", ArgLamports)
		}
		ix.Lamports = uint64(n)
	}
	if p.err != nil {
		return Instruction{}, fmt.Errorf("parse %s: %w", op, p.err)
	}
	return ix, nil
}

// argParser extracts typed arguments and keeps the first error.
type argParser struct {
	args Object
	err  error
}

func (p *argParser) str(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, present := p.args[key]
	if !present {
		return "", false
	}
	s, ok := v.(Str)
	if !ok {
		p.err = fmt.Errorf("%s must be a string, got %T", key, v)
		return "", false
	}
	return string(s), true
}

func (p *argParser) key(key string) Pubkey {
	s, ok := p.str(key)
	if !ok {
		if p.err == nil {
			p.err = fmt.Errorf("%s is required", key)
		}
		return Pubkey{}
	}
	k, err := ParsePubkey(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return k
}

func (p *argParser) optionalKey(key string) Pubkey {
	if _, present := p.args[key]; !present {
		return Pubkey{}
	}
	return p.key(key)
}

func (p *argParser) threadID(key string) ThreadID {
	s, ok := p.str(key)
	if !ok {
		if p.err == nil {
			p.err = fmt.Errorf("%s is required", key)
		}
		return ThreadID{}
	}
	id, err := ParseThreadID(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return id
}

func (p *argParser) hexBytes(key string) []byte {
	s, ok := p.str(key)
	if !ok {
		if p.err == nil {
			p.err = fmt.Errorf("%s is required", key)
		}
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return b
}

func (p *argParser) int(key string) int64 {
	if p.err != nil {
		return 0
	}
	v, present := p.args[key]
	if !present {
		p.err = fmt.Errorf("%s is required", key)
		return 0
	}
	n, ok := v.(Int)
	if !ok {
		p.err = fmt.Errorf("%s must be an integer, got %T", key, v)
		return 0
	}
	return int64(n)
}

func (p *argParser) u32(key string) uint32 {
	n := p.int(key)
	if p.err == nil && (n < 0 || n > int64(^uint32(0))) {
		p.err = fmt.Errorf("%s %d out of u32 range", key, n)
	}
	return uint32(n)
}
