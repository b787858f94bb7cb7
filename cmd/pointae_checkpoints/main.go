// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// pointae_checkpoints inspects experiment directories written by pointae:
// the run configuration, checkpointed hyperparameters and variables, and
// the loss/learning-rate series logged for plotting.
//
//	pointae_checkpoints [flags] <experiment or checkpoints directory>
//
// The argument may be the experiment directory itself (with conf.json and
// ckpts/ inside) or its ckpts/ subdirectory. Without section flags it
// prints the summary and the run configuration.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagScope = flag.String("scope", "/", "Variable scope considered by --summary and --vars. "+
		"The model lives under /encoder, /sampler, /sample_decoder and /decoder; "+
		"optimizer moments live under /AdamOptimizer.")

	flagSummary = flag.Bool("summary", false, "Prints sizes of the model under --scope, the global step and the last epoch.")
	flagConfig  = flag.Bool("config", false, "Prints the run configuration stored in conf.json.")
	flagParams  = flag.Bool("params", false, "Lists the checkpointed hyperparameters.")
	flagVars    = flag.Bool("vars", false, "Lists the variables under --scope.")
	flagList    = flag.Bool("list", false, "Lists the saved checkpoints with their sizes and ages.")
)

// runDirs resolves the command line argument, which may name the experiment
// directory or its checkpoints subdirectory, to both.
func runDirs(arg string) (expDir, ckptsDir string) {
	if fi, err := os.Stat(filepath.Join(arg, "ckpts")); err == nil && fi.IsDir() {
		return arg, filepath.Join(arg, "ckpts")
	}
	return filepath.Dir(arg), arg
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one experiment (or checkpoints) directory to inspect, got %d. See 'pointae_checkpoints -help'.", len(args))
		os.Exit(1)
	}
	expDir, ckptsDir := runDirs(args[0])

	anySection := *flagSummary || *flagConfig || *flagParams || *flagVars || *flagList ||
		*flagMetrics || *flagMetricsLabels || *flagPlot != ""
	if !anySection {
		*flagSummary = true
		*flagConfig = true
	}

	var ctx *context.Context
	if *flagSummary || *flagParams || *flagVars {
		ctx = context.New()
		_ = must.M1(checkpoints.Build(ctx).Dir(ckptsDir).Immediate().Done())
	}

	if *flagSummary {
		Summary(ctx, ckptsDir)
	}
	if *flagConfig {
		Config(expDir)
	}
	if *flagParams {
		Params(ctx)
	}
	if *flagVars {
		Variables(ctx)
	}
	if *flagList {
		ListCheckpoints(ckptsDir)
	}
	if *flagMetrics || *flagMetricsLabels {
		Metrics(expDir)
	}
	if *flagPlot != "" {
		BuildPlots(expDir, *flagPlot)
	}
}
