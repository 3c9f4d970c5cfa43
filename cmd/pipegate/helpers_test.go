package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

const testCorrelationID = "cli-test-correlation"

type cliResult struct {
	stdout   string
	logs     string
	exitCode int
	err      error
}

// executeCLI runs the root command with a captured exit function. Tests that
// use it must not run in parallel.
func executeCLI(t *testing.T, args ...string) cliResult {
	t.Helper()

	logs := &bytes.Buffer{}
	app, err := newAppContext(logs)
	require.NoError(t, err)

	res := cliResult{exitCode: exitRunnable}
	original := exitFunc
	exitFunc = func(code int) { res.exitCode = code }
	t.Cleanup(func() { exitFunc = original })

	root := newRootCmd(app)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)

	ctx := ports.WithCorrelationID(context.Background(), testCorrelationID)
	res.err = root.ExecuteContext(ctx)
	if res.err != nil {
		res.exitCode = exitCodeFor(res.err)
	}
	res.stdout = out.String()
	res.logs = logs.String()
	return res
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const jsonLogConfig = `log:
  level: info
  format: json
`

const mixedPipelines = `pipelines:
  - id: build
    name: Build
    application: shop
    stages:
      - {ref_id: "1", type: bake}
      - {ref_id: "2", type: deploy, requisite_stage_ref_ids: ["1"]}
  - id: retired
    name: Retired
    application: shop
    disabled: true
  - id: nightly
    name: Nightly
    application: billing
    limit_concurrent: true
state:
  running:
    nightly: 1
`

const runnablePipelines = `pipelines:
  - id: build
    name: Build
    application: shop
  - id: report
    name: Report
    application: billing
`
