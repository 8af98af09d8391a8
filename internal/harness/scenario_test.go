package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one thread"
principals:
  alice: 1000000000
  bob: 0
steps:
  - op: initialize_thread
    signer: alice
    args: { participant_b: $bob, thread_id: "1" }
    as: thread
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, DefaultStartTime, s.StartTime)
	assert.Equal(t, []string{"alice", "bob"}, s.principalNames())
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "$bob", s.Steps[0].Args.ParticipantB)
	assert.Equal(t, "thread", s.Steps[0].As)
	assert.Nil(t, s.Steps[0].Expect)
}

func TestLoadScenario_AllFixturesParse(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    minimalScenario + "assertion: []\n",
			wantErr: "field assertion not found",
		},
		{
			name:    "missing name",
			yaml:    "description: x\nprincipals: {a: 1}\nsteps: [{op: fund, args: {recipient: $a}}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing principals",
			yaml:    "name: x\ndescription: x\nsteps: [{op: fund, args: {recipient: $a}}]\n",
			wantErr: "principals map is required",
		},
		{
			name:    "missing steps",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: transfer, signer: a}]\n",
			wantErr: `unknown op "transfer"`,
		},
		{
			name:    "unknown signer",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: subscribe_channel, signer: b, args: {target: $a}}]\n",
			wantErr: `unknown signer "b"`,
		},
		{
			name:    "unsigned program op",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: subscribe_channel, args: {target: $a}}]\n",
			wantErr: "requires a signer",
		},
		{
			name:    "missing argument",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: close_thread, signer: a, args: {target: $a}}]\n",
			wantErr: "missing a required argument",
		},
		{
			name:    "fund without recipient",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: fund, args: {lamports: 5}}]\n",
			wantErr: "fund requires recipient",
		},
		{
			name:    "rebinding a principal",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: initialize_channel, signer: a, args: {channel_name: c}, as: a}]\n",
			wantErr: `name "a" is already bound`,
		},
		{
			name:    "expect without status",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: initialize_channel, signer: a, args: {channel_name: c}, expect: {logs: [x]}}]\n",
			wantErr: "expect requires status",
		},
		{
			name:    "bad program id",
			yaml:    "name: x\ndescription: x\nprogram_id: nope\nprincipals: {a: 1}\nsteps: [{op: fund, args: {recipient: $a}}]\n",
			wantErr: "program_id",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: fund, args: {recipient: $a}}]\nassertions: [{type: final_state}]\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "balance without lamports",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: fund, args: {recipient: $a}}]\nassertions: [{type: balance, address: $a}]\n",
			wantErr: "requires address and lamports",
		},
		{
			name:    "short trace_order",
			yaml:    "name: x\ndescription: x\nprincipals: {a: 1}\nsteps: [{op: fund, args: {recipient: $a}}]\nassertions: [{type: trace_order, ops: [fund]}]\n",
			wantErr: "at least 2 ops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseThreadID(t *testing.T) {
	id, err := parseThreadID("258")
	require.NoError(t, err)
	assert.Equal(t, byte(1), id[30])
	assert.Equal(t, byte(2), id[31])

	hexID := "ab00000000000000000000000000000000000000000000000000000000000001"
	id, err = parseThreadID(hexID)
	require.NoError(t, err)
	assert.Equal(t, hexID, id.String())

	_, err = parseThreadID("0x10")
	assert.Error(t, err)
}
