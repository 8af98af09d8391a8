package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/store"
)

// maxBodyBytes bounds a transaction request; the largest instruction is a
// message whose content is not persisted, so this is generous.
const maxBodyBytes = 1 << 20

// TransactionRequest is the body of POST /v1/transactions. The faucet
// instruction cannot be submitted over the API.
type TransactionRequest struct {
	ID          string    `json:"id" validate:"required,max=128"`
	Signer      string    `json:"signer" validate:"required,min=32,max=44"`
	Instruction string    `json:"instruction" validate:"required,oneof=initialize_thread send_message initialize_channel send_broadcast subscribe_channel close_thread close_channel"`
	Args        ir.Object `json:"args"`
	Signature   string    `json:"signature" validate:"required,hexadecimal,len=128"`
}

func (req TransactionRequest) envelope() (ir.Envelope, error) {
	return ir.WireEnvelope{
		ID:          req.ID,
		Signer:      req.Signer,
		Instruction: req.Instruction,
		Args:        req.Args,
		Signature:   req.Signature,
	}.Envelope()
}

func (s *Server) submitTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidJSON", "body is invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationFailed", err.Error())
		return
	}
	env, err := req.envelope()
	if err != nil {
		writeError(w, http.StatusBadRequest, string(engine.ErrCodeMalformed), err.Error())
		return
	}

	var res engine.Result
	select {
	case res = <-s.eng.Submit(env):
	case <-r.Context().Done():
		// The envelope stays queued and may still execute.
		writeError(w, http.StatusServiceUnavailable, "Cancelled", r.Context().Err().Error())
		return
	}

	if res.Err != nil {
		writeFailure(w, res.Err, nil)
		return
	}
	if res.Receipt.Err != nil {
		entry := res.Receipt.Entry
		writeFailure(w, res.Receipt.Err, &entry)
		return
	}
	writeJSON(w, http.StatusOK, res.Receipt)
}

// AccountResponse is the body of GET /v1/accounts/{address}.
type AccountResponse struct {
	Address  ir.Pubkey `json:"address"`
	Owner    ir.Pubkey `json:"owner"`
	Lamports uint64    `json:"lamports"`
	Space    int       `json:"space"`
	Type     string    `json:"type,omitempty"`
	Record   any       `json:"record,omitempty"`
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := ir.ParsePubkey(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidAddress", err.Error())
		return
	}

	acct, ok, err := s.store.GetAccount(r.Context(), addr)
	if err != nil {
		writeFailure(w, err, nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "AccountNotFound", "no account at "+addr.String())
		return
	}

	resp := AccountResponse{
		Address:  acct.Address,
		Owner:    acct.Owner,
		Lamports: acct.Lamports,
		Space:    len(acct.Data),
	}
	if acct.Owner == s.eng.Program().ID() {
		if kind, record, err := ir.DecodeRecord(acct.Data); err == nil {
			resp.Type = kind
			resp.Record = record
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil || seq < 1 {
		writeError(w, http.StatusBadRequest, "InvalidSeq", "seq must be a positive integer")
		return
	}

	entry, err := s.store.ReadEntry(r.Context(), seq)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "EntryNotFound", "no entry at seq "+strconv.FormatInt(seq, 10))
		return
	}
	if err != nil {
		writeFailure(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HeadResponse is the body of GET /v1/head.
type HeadResponse struct {
	Seq int64  `json:"seq"`
	ID  string `json:"id"`
}

func (s *Server) getHead(w http.ResponseWriter, r *http.Request) {
	seq, id := s.eng.Head()
	writeJSON(w, http.StatusOK, HeadResponse{Seq: seq, ID: id})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	seq, _ := s.eng.Head()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "seq": seq})
}
