// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiments

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// ConfirmFn asks the user a yes/no question and reports the answer.
// It is injected into PrepareRunDir so the prompt can be scripted in tests.
type ConfirmFn func(question string) bool

// StdinConfirm prompts on w and reads one line from r. Only an answer
// starting with "y" or "Y" counts as yes.
func StdinConfirm(r io.Reader, w io.Writer) ConfirmFn {
	reader := bufio.NewReader(r)
	return func(question string) bool {
		fmt.Fprint(w, question)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		answer = strings.TrimSpace(answer)
		return answer == "y" || answer == "Y" || strings.HasPrefix(strings.ToLower(answer), "yes")
	}
}

// ErrRefused is returned by PrepareRunDir when the experiment directory
// exists and the user declined to overwrite it.
var ErrRefused = errors.New("experiment directory already exists, not overwriting")

// PrepareRunDir creates the directory tree of a run:
//
//	<log_dir>/exp-<model>-<suffix>/
//	├── ckpts/
//	└── val_visu/        (omitted with NoVisu)
//
// If the experiment directory already exists, it is removed first: with
// cfg.Overwrite silently, otherwise only after confirm answers yes.
// A refusal returns ErrRefused, which callers are expected to treat as a
// non-zero exit, not as a crash.
func PrepareRunDir(cfg *Config, confirm ConfirmFn) error {
	expDir := cfg.ExpDir()
	exists, err := fsutil.FileExists(expDir)
	if err != nil {
		return errors.Wrapf(err, "failed to check experiment directory %q", expDir)
	}
	if exists {
		if !cfg.Overwrite {
			question := fmt.Sprintf("Experiment directory %q already exists, overwrite? (y/n) ", expDir)
			if confirm == nil || !confirm(question) {
				return errors.WithMessagef(ErrRefused, "%q", expDir)
			}
		}
		if err := os.RemoveAll(expDir); err != nil {
			return errors.Wrapf(err, "failed to remove previous experiment directory %q", expDir)
		}
	}
	if err := os.MkdirAll(cfg.CheckpointsDir(), 0755); err != nil {
		return errors.Wrapf(err, "failed to create checkpoints directory")
	}
	if !cfg.NoVisu {
		if err := os.MkdirAll(cfg.VisuDir(), 0755); err != nil {
			return errors.Wrapf(err, "failed to create visualization directory")
		}
	}
	return nil
}

// ResolveSeed maps a negative seed request to a freshly drawn seed in
// [1, 10000), any other value is used as is.
func ResolveSeed(seed int64) int64 {
	if seed >= 0 {
		return seed
	}
	return rand.Int64N(9999) + 1
}
