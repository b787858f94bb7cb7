// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/pointae/experiments"
	"github.com/gomlx/pointae/partae"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

// Summary prints the checkpoint location, training counters and the sizes
// of the variables under --scope.
func Summary(ctx *context.Context, ckptsDir string) {
	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(false)
	table.Row("checkpoints", ckptsDir)
	table.Row("scope", *flagScope)

	if v := ctx.GetVariable(optimizers.GlobalStepVariableName); v != nil {
		globalStep := tensors.ToScalar[int64](must.M1(v.Value()))
		table.Row("global_step", humanize.Comma(globalStep))
	}
	if epoch := context.GetParamOr(ctx, partae.ParamEpoch, -1); epoch >= 0 {
		table.Row("epoch", humanize.Comma(int64(epoch)))
	}

	scopedCtx := ctx
	if *flagScope != "" {
		scopedCtx = ctx.InAbsPath(*flagScope)
	}
	var numVars, totalSize int
	var totalMemory uintptr
	scopedCtx.EnumerateVariablesInScope(func(v *context.Variable) {
		numVars++
		totalSize += v.Shape().Size()
		totalMemory += v.Shape().Memory()
	})
	table.Row("# variables", humanize.Comma(int64(numVars)))
	table.Row("# parameters", humanize.Comma(int64(totalSize)))
	table.Row("# bytes", humanize.Bytes(uint64(totalMemory)))
	fmt.Println(table.Render())
}

// Config prints the conf.json snapshot saved next to the checkpoints.
func Config(expDir string) {
	cfg, err := experiments.Load(expDir)
	if err != nil {
		klog.Warningf("No run configuration: %v", err)
		return
	}
	fmt.Println(titleStyle.Render("Configuration"))
	table := newPlainTable(false)
	table.Row("experiment", cfg.ExpName())
	table.Row("run_id", cfg.RunID)
	table.Row("args", strings.Join(cfg.Args, " "))
	table.Row("data_dir", cfg.DataDir)
	table.Row("val_data_dir", cfg.ValDataDir)
	table.Row("seed", fmt.Sprintf("%d", cfg.Seed))
	table.Row("num_point", humanize.Comma(int64(cfg.NumPoint)))
	table.Row("feat_dim", humanize.Comma(int64(cfg.FeatDim)))
	table.Row("decoder", cfg.Decoder.String())
	table.Row("loss", cfg.Loss.String())
	table.Row("probabilistic", fmt.Sprintf("%v", cfg.Probabilistic))
	if cfg.Probabilistic {
		table.Row("kldiv_loss_weight", fmt.Sprintf("%g", cfg.KLWeight))
	}
	table.Row("epochs", humanize.Comma(int64(cfg.Epochs)))
	table.Row("batch_size", humanize.Comma(int64(cfg.BatchSize)))
	table.Row("lr", fmt.Sprintf("%g", cfg.LearningRate))
	table.Row("weight_decay", fmt.Sprintf("%g", cfg.WeightDecay))
	table.Row("lr_decay", fmt.Sprintf("x%g every %s steps", cfg.LRDecayBy, humanize.Comma(int64(cfg.LRDecayEvery))))
	fmt.Println(table.Render())
}

// Params lists every hyperparameter stored in the checkpoint, per scope.
func Params(ctx *context.Context) {
	fmt.Println(titleStyle.Render("Hyperparameters"))
	table := newPlainTable(true)
	table.Row("Scope", "Name", "Type", "Value")
	var rows [][]string
	ctx.EnumerateParams(func(scope, key string, value any) {
		rows = append(rows, []string{scope, key, fmt.Sprintf("%T", value), fmt.Sprintf("%v", value)})
	})
	sortRows(rows)
	for _, row := range rows {
		table.Row(row...)
	}
	fmt.Println(table.Render())
}

// Variables lists the variables under --scope with shapes and sizes.
func Variables(ctx *context.Context) {
	fmt.Println(titleStyle.Render("Variables"))
	scopedCtx := ctx
	if *flagScope != "" {
		scopedCtx = ctx.InAbsPath(*flagScope)
	}
	table := newPlainTable(true)
	table.Row("Scope", "Name", "Shape", "Size", "Bytes")
	var rows [][]string
	scopedCtx.EnumerateVariablesInScope(func(v *context.Variable) {
		shape := v.Shape()
		rows = append(rows, []string{
			v.Scope(), v.Name(), shape.String(),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(shape.Memory())),
		})
	})
	sortRows(rows)
	for _, row := range rows {
		table.Row(row...)
	}
	fmt.Println(table.Render())
}

// ListCheckpoints prints every saved checkpoint with its size and age.
func ListCheckpoints(ckptsDir string) {
	fmt.Println(titleStyle.Render("Checkpoints"))
	entries, err := os.ReadDir(ckptsDir)
	if err != nil {
		klog.Errorf("Failed to list %q: %v", ckptsDir, err)
		return
	}
	table := newPlainTable(true)
	table.Row("Name", "Params", "Data", "Saved")
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, checkpoints.JsonNameSuffix) {
			continue
		}
		base := name[:len(name)-len(checkpoints.JsonNameSuffix)]
		info := must.M1(entry.Info())
		row := []string{base, humanize.Bytes(uint64(info.Size())), "", humanize.Time(info.ModTime())}
		if binInfo, err := os.Stat(filepath.Join(ckptsDir, base+checkpoints.BinDataSuffix)); err == nil {
			row[2] = humanize.Bytes(uint64(binInfo.Size()))
		}
		table.Row(row...)
	}
	fmt.Println(table.Render())
}

func sortRows(rows [][]string) {
	slices.SortFunc(rows, func(a, b []string) int {
		if cmp := strings.Compare(a[0], b[0]); cmp != 0 {
			return cmp
		}
		return strings.Compare(a[1], b[1])
	})
}
