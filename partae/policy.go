// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

// Split names one of the two dataset roles of an experiment.
type Split string

const (
	TrainSplit Split = "train"
	ValSplit   Split = "val"
)

// valInterleave schedules validation batches between training batches, so
// that validation advances through its epoch at the same fraction as
// training does: after each training batch, validation batches are consumed
// while the fraction of validation done trails the fraction of training
// done. Over a full epoch every validation batch is consumed exactly once.
type valInterleave struct {
	trainBatches, valBatches int
	nextVal                  int
}

func newValInterleave(trainBatches, valBatches int) *valInterleave {
	return &valInterleave{trainBatches: trainBatches, valBatches: valBatches}
}

// take returns how many validation batches to run after the given
// zero-based training batch.
func (v *valInterleave) take(trainBatch int) int {
	trainFraction := float64(trainBatch+1) / float64(v.trainBatches)
	count := 0
	for v.nextVal < v.valBatches && float64(v.nextVal)/float64(v.valBatches) <= trainFraction {
		v.nextVal++
		count++
	}
	return count
}

// reset starts a new epoch.
func (v *valInterleave) reset() { v.nextVal = 0 }

// checkpointPolicy decides when to write a checkpoint: immediately when none
// was written yet, then whenever at least interval steps passed since the
// last one.
type checkpointPolicy struct {
	interval int64
	saved    bool
	lastStep int64
}

func (p *checkpointPolicy) shouldSave(step int64) bool {
	return !p.saved || step-p.lastStep >= p.interval
}

func (p *checkpointPolicy) markSaved(step int64) {
	p.saved = true
	p.lastStep = step
}

// consoleGate rate-limits console rows per split by a minimum number of
// steps between rows. The first row of each split always passes. Steps are
// floats because validation rows sit at fractional positions between
// training steps.
type consoleGate struct {
	interval float64
	logged   map[Split]float64
}

func newConsoleGate(interval float64) *consoleGate {
	return &consoleGate{interval: interval, logged: make(map[Split]float64)}
}

func (cg *consoleGate) shouldLog(split Split, step float64) bool {
	last, ok := cg.logged[split]
	return !ok || step-last >= cg.interval
}

func (cg *consoleGate) markLogged(split Split, step float64) {
	cg.logged[split] = step
}

// visuEpoch reports whether clouds should be visualized this epoch.
func visuEpoch(epoch, everyEpochs int) bool {
	return everyEpochs > 0 && epoch%everyEpochs == 0
}

// overallProgress is the fraction of the whole run completed after the given
// zero-based epoch and batch, counted over one split's batches.
func overallProgress(epoch, batch, numBatches, epochs int) float64 {
	return float64(1+batch+numBatches*epoch) / float64(numBatches*epochs)
}
