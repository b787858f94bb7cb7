// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// pointae trains a part point-cloud autoencoder: a set-abstraction encoder,
// an optionally probabilistic latent sampler and a fully-connected or
// up-convolutional decoder, optimized on Chamfer or earth-mover distance.
//
// A typical run:
//
//	pointae --exp_suffix=chairs --data_dir=~/data/parts/chairs --probabilistic
//
// It creates <log_dir>/exp-<model_version>-<exp_suffix>/ with the run
// configuration, a train_log.txt transcript, per-split board files,
// checkpoints under ckpts/ and periodic validation renders under val_visu/.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/pointae/experiments"
	"github.com/gomlx/pointae/partae"
	"github.com/gomlx/pointae/partdata"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	// Experiment naming and environment.
	flagExpSuffix    = flag.String("exp_suffix", "", "Experiment suffix: the run is named exp-<model_version>-<exp_suffix>. Required.")
	flagModelVersion = flag.String("model_version", experiments.DefaultModelVersion, "Model family to train.")
	flagDevice       = flag.String("device", "", "Backend configuration, e.g. \"xla:cuda\" or \"go\". Empty selects the default backend.")
	flagSeed         = flag.Int64("seed", 3124256514, "Random seed. Negative values draw a fresh seed.")
	flagCheckpoint   = flag.String("checkpoint", "", "Checkpoint directory of a previous run to warm-start the model weights from.")
	flagLogDir       = flag.String("log_dir", "logs", "Parent directory for experiment directories.")
	flagDataDir      = flag.String("data_dir", "", "Directory with the training point clouds. Required.")
	flagValDataDir   = flag.String("val_data_dir", "", "Directory with the validation point clouds. Defaults to --data_dir.")
	flagOverwrite    = flag.Bool("overwrite", false, "Overwrite a pre-existing experiment directory without asking.")

	// Network.
	flagNumPoint      = flag.Int("num_point", 2048, "Points per cloud: every shape is resampled to this size.")
	flagFeatDim       = flag.Int("feat_dim", 128, "Width of the latent feature vector.")
	flagDecoderType   = flag.String("decoder_type", "fc", "Decoder architecture: \"fc\" or \"fcupconv\".")
	flagLossType      = flag.String("loss_type", "cd", "Reconstruction distance: \"cd\" (Chamfer) or \"emd\" (earth mover).")
	flagKLWeight      = flag.Float64("kldiv_loss_weight", 1e-4, "Weight of the KL divergence term, used in probabilistic mode.")
	flagProbabilistic = flag.Bool("probabilistic", false, "Sample the latent code from the posterior instead of taking its mean.")

	// Optimization.
	flagEpochs       = flag.Int("epochs", 1000, "Number of training epochs.")
	flagBatchSize    = flag.Int("batch_size", 16, "Batch size, shared by both splits.")
	flagNumWorkers   = flag.Int("num_workers", 10, "Concurrent workers loading the training corpus.")
	flagLR           = flag.Float64("lr", 1e-3, "Initial learning rate.")
	flagWeightDecay  = flag.Float64("weight_decay", 1e-5, "Optimizer weight decay.")
	flagLRDecayBy    = flag.Float64("lr_decay_by", 0.9, "Multiplicative learning rate decay.")
	flagLRDecayEvery = flag.Int("lr_decay_every", 5000, "Optimization steps between learning rate decays.")

	// Logging.
	flagNoTBLog            = flag.Bool("no_tb_log", false, "Skip writing board log points.")
	flagNoConsoleLog       = flag.Bool("no_console_log", false, "Skip console progress rows.")
	flagConsoleLogInterval = flag.Int("console_log_interval", 1, "Minimum optimization steps between console progress rows.")
	flagCheckpointInterval = flag.Int("checkpoint_interval", 10000, "Minimum optimization steps between checkpoints.")

	// Visualization.
	flagNumBatchEveryVisu = flag.Int("num_batch_every_visu", 1, "Validation batches rendered per visualization epoch.")
	flagNumEpochEveryVisu = flag.Int("num_epoch_every_visu", 10, "Epochs between validation visualizations.")
	flagNoVisu            = flag.Bool("no_visu", false, "Skip validation visualizations altogether.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	decoder, err := experiments.ParseDecoderType(*flagDecoderType)
	if err != nil {
		klog.Exitf("--decoder_type: %v", err)
	}
	loss, err := experiments.ParseLossType(*flagLossType)
	if err != nil {
		klog.Exitf("--loss_type: %v", err)
	}
	valDataDir := *flagValDataDir
	if valDataDir == "" {
		valDataDir = *flagDataDir
	}

	cfg := &experiments.Config{
		RunID:        uuid.NewString(),
		Args:         os.Args,
		DataDir:      *flagDataDir,
		ValDataDir:   valDataDir,
		LogDir:       *flagLogDir,
		ModelVersion: *flagModelVersion,
		ExpSuffix:    *flagExpSuffix,
		Device:       *flagDevice,
		Seed:         experiments.ResolveSeed(*flagSeed),

		NumPoint:      *flagNumPoint,
		FeatDim:       *flagFeatDim,
		Decoder:       decoder,
		Loss:          loss,
		Probabilistic: *flagProbabilistic,
		KLWeight:      *flagKLWeight,

		Epochs:       *flagEpochs,
		BatchSize:    *flagBatchSize,
		NumWorkers:   *flagNumWorkers,
		LearningRate: *flagLR,
		WeightDecay:  *flagWeightDecay,
		LRDecayBy:    *flagLRDecayBy,
		LRDecayEvery: *flagLRDecayEvery,

		ConsoleLogInterval: *flagConsoleLogInterval,
		CheckpointInterval: *flagCheckpointInterval,
		NumBatchEveryVisu:  *flagNumBatchEveryVisu,
		NumEpochEveryVisu:  *flagNumEpochEveryVisu,

		NoConsoleLog: *flagNoConsoleLog,
		NoBoardLog:   *flagNoTBLog,
		NoVisu:       *flagNoVisu,
		Overwrite:    *flagOverwrite,
		Checkpoint:   *flagCheckpoint,
	}
	if err := cfg.Validate(); err != nil {
		klog.Exitf("Invalid configuration: %v", err)
	}

	err = experiments.PrepareRunDir(cfg, experiments.StdinConfirm(os.Stdin, os.Stdout))
	if errors.Is(err, experiments.ErrRefused) {
		fmt.Println("Not overwriting, exiting.")
		os.Exit(1)
	}
	if err != nil {
		klog.Exitf("Failed to prepare %q: %+v", cfg.ExpDir(), err)
	}
	if err := cfg.Save(cfg.ExpDir()); err != nil {
		klog.Exitf("Failed to save run configuration: %+v", err)
	}

	logFile, err := experiments.NewFileSink(filepath.Join(cfg.ExpDir(), "train_log.txt"))
	if err != nil {
		klog.Exitf("Failed to open training log: %+v", err)
	}
	runLog := experiments.Tee(experiments.WriterSink{W: os.Stdout}, logFile)
	experiments.Logf(runLog, "%s\n", strings.Join(cfg.Args, " "))
	experiments.Logf(runLog, "Run ID: %s", cfg.RunID)
	experiments.Logf(runLog, "Random Seed: %d", cfg.Seed)

	exitCode := 0
	err = exceptions.TryCatch[error](func() { run(cfg, runLog) })
	if err != nil {
		klog.Errorf("Training failed: %+v", err)
		exitCode = 1
	}
	if err := logFile.Close(); err != nil {
		klog.Errorf("Failed to close training log: %v", err)
	}
	os.Exit(exitCode)
}

// run executes the whole training job. Errors surface as panics, caught by
// the exceptions handler in main so the log file still gets closed.
func run(cfg *experiments.Config, runLog experiments.Sink) {
	var backend backends.Backend
	if cfg.Device != "" {
		backend = backends.NewWithConfig(cfg.Device)
	} else {
		backend = backends.New()
	}
	experiments.Logf(runLog, "Using device: %s (%s)\n", backend.Name(), backend.Description())

	trainCorpus := must.M1(partdata.LoadCorpus(cfg.DataDir, cfg.NumPoint, partdata.LoadOptions{
		Split:      string(partae.TrainSplit),
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
		Progress:   true,
	}))
	valCorpus := must.M1(partdata.LoadCorpus(cfg.ValDataDir, cfg.NumPoint, partdata.LoadOptions{
		Split: string(partae.ValSplit),
		Seed:  cfg.Seed,
	}))
	experiments.Logf(runLog, "Loaded %d training / %d validation clouds of %d points",
		trainCorpus.NumClouds(), valCorpus.NumClouds(), cfg.NumPoint)

	trainBatches := trainCorpus.NumBatches(cfg.BatchSize)
	valBatches := valCorpus.NumBatches(cfg.BatchSize)
	if trainBatches == 0 {
		exceptions.Panicf("not enough training clouds (%d) for a single batch of %d",
			trainCorpus.NumClouds(), cfg.BatchSize)
	}
	trainDS := must.M1(trainCorpus.Dataset(backend, string(partae.TrainSplit))).
		BatchSize(cfg.BatchSize, true).Shuffle()
	valDS := must.M1(valCorpus.Dataset(backend, string(partae.ValSplit))).
		BatchSize(cfg.BatchSize, true)

	network := must.M1(partae.NewNetwork(cfg))
	ctx := context.New()
	partae.SetupContext(ctx, cfg)
	handler := must.M1(partae.AttachCheckpoints(ctx, cfg))
	trainer := partae.NewTrainer(backend, ctx, network)

	var board *partae.Board
	if !cfg.NoBoardLog {
		board = must.M1(partae.NewBoard(cfg.ExpDir(), partae.TrainSplit, partae.ValSplit))
	}
	var visualizer partae.Visualizer
	if !cfg.NoVisu {
		visualizer = partae.NewEpochVisualizer(cfg, valCorpus.Names, runLog)
	}

	loop := &partae.Loop{
		Config:      cfg,
		Trainer:     trainer,
		Checkpoints: handler,
		Board:       board,
		Log:         runLog,
		Visualizer:  visualizer,
	}
	runErr := loop.Run(trainDS, valDS, trainBatches, valBatches)
	if board != nil {
		if err := board.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	must.M(runErr)
}
