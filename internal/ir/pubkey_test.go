package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", SystemProgramID.String())

	programID := MustPubkey("9tN5NBvynubfJwQWDqrSoHEE3Xy2MVj3BmHdLu13wCcS")
	assert.Equal(t, "9tN5NBvynubfJwQWDqrSoHEE3Xy2MVj3BmHdLu13wCcS", programID.String())
	assert.False(t, programID.IsZero())
}

func TestParsePubkeyErrors(t *testing.T) {
	_, err := ParsePubkey("abc")
	assert.ErrorContains(t, err, "want 32")

	_, err = ParsePubkey("0OIl")
	assert.Error(t, err)
}

func TestPubkeyJSON(t *testing.T) {
	type wrapper struct {
		Key Pubkey `json:"key"`
	}
	in := wrapper{Key: Pubkey{1, 2, 3}}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), in.Key.String())

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestParseThreadID(t *testing.T) {
	id, err := ParseThreadID("01")
	require.NoError(t, err)
	assert.Equal(t, ThreadID{31: 1}, id)

	id, err = ParseThreadID("abc")
	require.NoError(t, err)
	assert.Equal(t, ThreadID{30: 0x0a, 31: 0xbc}, id)

	_, err = ParseThreadID("zz")
	assert.Error(t, err)

	long := make([]byte, 66)
	for i := range long {
		long[i] = 'f'
	}
	_, err = ParseThreadID(string(long))
	assert.ErrorContains(t, err, "exceeds 32")
}
