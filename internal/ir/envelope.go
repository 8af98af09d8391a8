package ir

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadSignature is returned by Verify when the signature does not match.
var ErrBadSignature = errors.New("signature verification failed")

// Envelope is a signed transaction carrying one instruction. ID is a
// caller-chosen unique token (UUIDv7 in production) that also serves as
// replay protection: the ledger accepts each ID at most once.
type Envelope struct {
	ID          string
	Signer      Pubkey
	Instruction Instruction
	Signature   []byte
}

// Sign fills in Signer and Signature using priv.
func (env *Envelope) Sign(priv ed25519.PrivateKey) error {
	signer, err := PubkeyFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}
	env.Signer = signer
	msg, err := SigningMessage(*env)
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}
	env.Signature = ed25519.Sign(priv, msg)
	return nil
}

// Verify checks the signature against Signer.
func (env Envelope) Verify() error {
	if len(env.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature is %d bytes", ErrBadSignature, len(env.Signature))
	}
	msg, err := SigningMessage(env)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(env.Signer[:]), msg, env.Signature) {
		return ErrBadSignature
	}
	return nil
}

// WireEnvelope is the JSON form of an Envelope.
type WireEnvelope struct {
	ID          string `json:"id"`
	Signer      string `json:"signer"`
	Instruction string `json:"instruction"`
	Args        Object `json:"args"`
	Signature   string `json:"signature"`
}

// Wire converts to the JSON form.
func (env Envelope) Wire() WireEnvelope {
	return WireEnvelope{
		ID:          env.ID,
		Signer:      env.Signer.String(),
		Instruction: string(env.Instruction.Op),
		Args:        env.Instruction.Args(),
		Signature:   hex.EncodeToString(env.Signature),
	}
}

// Envelope parses the JSON form. The signature is not verified.
func (w WireEnvelope) Envelope() (Envelope, error) {
	signer, err := ParsePubkey(w.Signer)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope signer: %w", err)
	}
	args := w.Args
	if args == nil {
		args = Object{}
	}
	ix, err := ParseInstruction(Op(w.Instruction), args)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope instruction: %w", err)
	}
	sig, err := hex.DecodeString(w.Signature)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope signature: %w", err)
	}
	return Envelope{ID: w.ID, Signer: signer, Instruction: ix, Signature: sig}, nil
}

// MarshalJSON implements json.Marshaler.
func (env Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(env.Wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (env *Envelope) UnmarshalJSON(data []byte) error {
	var w WireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := w.Envelope()
	if err != nil {
		return err
	}
	*env = parsed
	return nil
}
