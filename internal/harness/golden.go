package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Snapshot is the deterministic part of a scenario run: the trace and the
// final state of every bound address.
type Snapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Trace        []TraceEvent   `json:"trace"`
	State        map[string]any `json:"state"`
}

// canonical builds the canonical JSON object for the snapshot. Logs are
// left out because they embed base58 keys.
func (s Snapshot) canonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.Object{
			"step":   ir.Int(ev.Step),
			"op":     ir.Str(ev.Op),
			"status": ir.Str(ev.Status),
		}
		if ev.Signer != "" {
			obj["signer"] = ir.Str(ev.Signer)
		}
		if ev.Seq != 0 {
			obj["seq"] = ir.Int(ev.Seq)
		}
		trace[i] = obj
	}

	state := ir.Object{}
	for name, v := range s.State {
		switch val := v.(type) {
		case ir.Object:
			state[name] = val
		case string:
			state[name] = ir.Str(val)
		}
	}

	return ir.Object{
		"scenario_name": ir.Str(s.ScenarioName),
		"trace":         trace,
		"state":         state,
	}
}

// MarshalSnapshot returns the canonical JSON of a result's snapshot.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snap := Snapshot{ScenarioName: name, Trace: result.Trace, State: result.State}
	return ir.MarshalCanonical(snap.canonical())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
