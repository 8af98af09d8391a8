package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that did not pass.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted. A
// path naming a single file is returned as is.
func FindScenarios(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario under dir. A scenario that
// cannot be loaded or executed counts as failed with that error.
func RunSuite(ctx context.Context, dir string) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}

	suite := &SuiteResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.Total++

		name := filepath.Base(path)
		errs := runScenarioFile(ctx, path, &name)
		if len(errs) == 0 {
			suite.Passed++
			continue
		}
		suite.Failed++
		suite.Failures = append(suite.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
	}
	return suite, nil
}

func runScenarioFile(ctx context.Context, path string, name *string) []string {
	scenario, err := LoadScenario(path)
	if err != nil {
		return []string{err.Error()}
	}
	*name = scenario.Name

	result, err := Run(ctx, scenario)
	if err != nil {
		return []string{err.Error()}
	}
	return result.Errors
}
