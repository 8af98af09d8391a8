package harness

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/testutil"
)

func runYAML(t *testing.T, doc string) *Result {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	return result
}

func TestRun_BindsAddressesAndCapturesState(t *testing.T) {
	result := runYAML(t, minimalScenario)
	require.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, "ok", ev.Status)
	assert.Equal(t, int64(2), ev.Seq, "one genesis entry precedes the step")
	assert.Equal(t, "alice", ev.Signer)
	assert.Contains(t, ev.Logs, "Participant B: "+testutil.Pubkey("bob").String())

	state, ok := result.State["thread"].(ir.Object)
	require.True(t, ok, "thread should be captured as an object")
	assert.Equal(t, ir.Str("$alice"), state["participant_a"])
	assert.Equal(t, ir.Str("$bob"), state["participant_b"])
	assert.Equal(t, ir.Int(1753920), state["lamports"])
	assert.Equal(t, ir.Int(DefaultStartTime+1), state["created_at"])
}

func TestRun_ExpectationMismatchFailsScenario(t *testing.T) {
	result := runYAML(t, `
name: mismatch
description: "wrong expectations"
principals: { alice: 1000000000 }
steps:
  - op: initialize_channel
    signer: alice
    args: { channel_name: news }
    expect: { status: ChannelNameTooLong }
  - op: initialize_channel
    signer: alice
    args: { channel_name: other }
    expect:
      status: ok
      logs: ["Channel: news"]
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `expected status "ChannelNameTooLong", got "ok"`)
	assert.Contains(t, result.Errors[1], `log line "Channel: news" not emitted`)
}

func TestRun_FailedStepDoesNotBind(t *testing.T) {
	result := runYAML(t, `
name: unbound
description: "a failed create binds nothing"
principals: { alice: 0 }
steps:
  - op: initialize_channel
    signer: alice
    args: { channel_name: news }
    as: news
    expect: { status: InsufficientFunds }
`)
	require.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.State)
	assert.Equal(t, int64(1), result.Trace[0].Seq, "failed entries are still appended")
}

func TestRun_UnboundReferenceIsAnError(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: dangling
description: "refers to a name never bound"
principals: { alice: 1000000000 }
steps:
  - op: subscribe_channel
    signer: alice
    args: { target: $news }
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unbound reference "$news"`)
}

func TestRun_RentOverride(t *testing.T) {
	result := runYAML(t, `
name: cheap
description: "custom deposit schedule"
principals: { alice: 10000 }
rent: { overhead: 0, lamports_per_byte: 10 }
start_time: 500
steps:
  - op: initialize_channel
    signer: alice
    args: { channel_name: news }
    as: news
    expect: { status: ok }
assertions:
  - type: balance
    address: $news
    lamports: 1000
  - type: balance
    address: $alice
    lamports: 9000
  - type: account
    address: $news
    expect: { created_at: 501 }
  - type: replay
`)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_Fixtures(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err)
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestLamportsValue(t *testing.T) {
	assert.Equal(t, ir.Int(0), lamportsValue(0))
	assert.Equal(t, ir.Int(math.MaxInt64), lamportsValue(math.MaxInt64))
	assert.Equal(t, ir.Str("9223372036854775808"), lamportsValue(math.MaxInt64+1))
	assert.Equal(t, ir.Str("18446744073709551615"), lamportsValue(math.MaxUint64))
}

func TestRun_BalanceAboveInt64StaysPositive(t *testing.T) {
	result := runYAML(t, `
name: whale
description: "balances beyond int64"
principals: { alice: 1 }
steps:
  - op: fund
    args: { recipient: $alice, lamports: 9223372036854775807 }
    expect: { status: ok }
  - op: fund
    args: { recipient: $alice, lamports: 9223372036854775807 }
    expect: { status: ok }
  - op: initialize_channel
    signer: alice
    args: { channel_name: news }
    as: news
    expect: { status: ok }
  - op: close_channel
    signer: alice
    args: { target: $news, recipient: $alice }
    expect: { status: ok }
assertions:
  - type: account
    address: $alice
    expect: { lamports: 18446744073709551615, type: system }
  - type: balance
    address: $alice
    lamports: 18446744073709551615
`)
	require.True(t, result.Pass, result.Errors)
}
