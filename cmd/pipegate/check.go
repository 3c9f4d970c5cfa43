package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/pipegate/internal/config"
	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	pipegateerrors "github.com/alexisbeaulieu97/pipegate/pkg/errors"
)

type checkOptions struct {
	PipelinesPath string
	PipelineID    string
	JSON          bool
	Timeout       time.Duration
}

const (
	statusRunnable = "runnable"
	statusRejected = "rejected"
	statusError    = "error"
)

type checkResult struct {
	PipelineID  string                 `json:"pipeline_id"`
	Application string                 `json:"application"`
	Status      string                 `json:"status"`
	Kind        string                 `json:"kind,omitempty"`
	Validator   string                 `json:"validator,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

type checkSummary struct {
	Total    int `json:"total"`
	Runnable int `json:"runnable"`
	Rejected int `json:"rejected"`
	Errored  int `json:"errored"`
}

type checkReport struct {
	Validators []string      `json:"validators"`
	Results    []checkResult `json:"results"`
	Summary    checkSummary  `json:"summary"`
}

// ExitCode is 3 when any check errored, 1 when any pipeline was rejected and 0 otherwise.
func (r checkReport) ExitCode() int {
	switch {
	case r.Summary.Errored > 0:
		return exitInfrastructure
	case r.Summary.Rejected > 0:
		return exitRejected
	default:
		return exitRunnable
	}
}

func newCheckCmd(app *AppContext) *cobra.Command {
	opts := checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <pipelines-file>",
		Short: "Check whether pipelines may start now",
		Long: `Check runs the configured validator chain against every pipeline in the file,
or only the one selected with --pipeline. Exit code 0 means every pipeline is
runnable, 1 that at least one was rejected, 2 a configuration error and 3 an
infrastructure error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.PipelinesPath = args[0]

			report, err := runCheck(cmd.Context(), app, opts)
			if err != nil {
				return err
			}
			if err := renderReport(cmd.OutOrStdout(), report, opts.JSON); err != nil {
				return err
			}
			if code := report.ExitCode(); code != exitRunnable {
				exitFunc(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.PipelineID, "pipeline", "p", "", "Only check the pipeline with this id")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output results in JSON format")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Deadline for the whole check; accepts Go duration strings (e.g. 10s)")

	return cmd
}

func runCheck(ctx context.Context, app *AppContext, opts checkOptions) (*checkReport, error) {
	file, err := config.ParsePipelines(opts.PipelinesPath)
	if err != nil {
		return nil, err
	}

	targets := file.DomainPipelines()
	if opts.PipelineID != "" {
		def, ok := file.Find(opts.PipelineID)
		if !ok {
			return nil, pipegateerrors.NewValidationError("pipeline", fmt.Sprintf("pipeline %q not found in %s", opts.PipelineID, opts.PipelinesPath), nil)
		}
		targets = []pipeline.Pipeline{config.ToDomain(def)}
	}

	stores, err := app.seedStores(ctx, file)
	if err != nil {
		return nil, err
	}
	g, err := app.buildGate(stores)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	app.Logger.Info(ctx, "checking pipelines", "file", opts.PipelinesPath, "pipelines", len(targets), "validators", g.Validators())

	report := &checkReport{Validators: g.Validators(), Results: make([]checkResult, 0, len(targets))}
	for _, p := range targets {
		result := checkResult{PipelineID: p.ID, Application: p.Application, Status: statusRunnable}

		err := g.CheckRunnable(ctx, p)
		if failure, ok := pipeline.AsValidationFailure(err); ok {
			result.Status = statusRejected
			result.Kind = string(failure.Kind)
			result.Validator = failure.Validator
			result.Message = failure.Message
			result.Context = failure.Context
			report.Summary.Rejected++
		} else if err != nil {
			result.Status = statusError
			result.Message = err.Error()
			report.Summary.Errored++
		} else {
			report.Summary.Runnable++
		}

		report.Results = append(report.Results, result)
	}
	report.Summary.Total = len(report.Results)

	app.Logger.Info(ctx, "check complete",
		"total", report.Summary.Total,
		"runnable", report.Summary.Runnable,
		"rejected", report.Summary.Rejected,
		"errored", report.Summary.Errored,
	)

	return report, nil
}

func renderReport(w io.Writer, report *checkReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := io.WriteString(w, renderTable(report))
	return err
}
