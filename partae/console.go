// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"fmt"
	"time"
)

// consoleHeader is the column title row printed at the start of each epoch.
func consoleHeader() string {
	return fmt.Sprintf("%9s %11s %7s %11s %9s %10s %11s",
		"time", "epoch", "split", "batch", "progress", "lr", "total_loss")
}

// consoleRow formats one progress row: elapsed wall clock, epoch and batch
// position within the run, the fraction of the whole run done, the learning
// rate and the batch loss.
func consoleRow(elapsed time.Duration, epoch, epochs int, split Split, batch, numBatches int, lr, loss float32) string {
	progress := overallProgress(epoch, batch, numBatches, epochs)
	return fmt.Sprintf("%9s %5d/%-5d %7s %5d/%-5d %8.1f%% %10.2E %11.5f",
		formatElapsed(elapsed), epoch, epochs, split, batch, numBatches, 100*progress, lr, loss)
}

// formatElapsed renders a duration as HH:MM:SS, hours not wrapping at 24.
func formatElapsed(elapsed time.Duration) string {
	seconds := int64(elapsed.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}
