package ir

import "encoding/hex"

// Entry status values. Failed entries carry the symbolic error code instead.
const StatusOK = "ok"

// Entry is one record of the append-only, hash-chained transaction log.
// Every submitted envelope that passes signature verification produces an
// entry, whether or not its instruction succeeded; failed entries have no
// effects.
type Entry struct {
	Seq         int64  `json:"seq"`
	ID          string `json:"id"`
	PrevID      string `json:"prev_id"`
	TxID        string `json:"tx_id"`
	Signer      Pubkey `json:"signer"`
	Instruction Op     `json:"instruction"`
	Args        Object `json:"args"`
	Signature   []byte `json:"signature"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	EffectsHash string `json:"effects_hash"`
}

// OK reports whether the entry's instruction succeeded.
func (e Entry) OK() bool {
	return e.Status == StatusOK
}

// Envelope rebuilds the signed envelope recorded by the entry.
func (e Entry) Envelope() (Envelope, error) {
	ix, err := ParseInstruction(e.Instruction, e.Args)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{ID: e.TxID, Signer: e.Signer, Instruction: ix, Signature: e.Signature}, nil
}

// hashObject is everything the entry id commits to. ID itself is excluded.
func (e Entry) hashObject() Object {
	return Object{
		"prev_id":      Str(e.PrevID),
		"seq":          Int(e.Seq),
		"tx_id":        Str(e.TxID),
		"signer":       Str(e.Signer.String()),
		"instruction":  Str(string(e.Instruction)),
		"args":         e.Args,
		"signature":    Str(hex.EncodeToString(e.Signature)),
		"status":       Str(e.Status),
		"message":      Str(e.Message),
		"timestamp":    Int(e.Timestamp),
		"effects_hash": Str(e.EffectsHash),
	}
}
