// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package experiments holds the configuration and run-directory management for
// point-cloud autoencoder training experiments.
//
// A training run is described by an immutable Config value, built once from
// command-line flags (see cmd/pointae) and validated before anything touches
// the filesystem. The package also owns the experiment directory layout
// (checkpoints, validation visualizations, the run log) and the conf.json
// snapshot that allows reloading the exact configuration of a past run.
package experiments

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DefaultModelVersion is the model family implemented by this repository.
// The flag exists so experiment names stay comparable with runs of other
// versions; only this value is accepted.
const DefaultModelVersion = "partae"

// DecoderType selects which decoder the network uses to map latent codes
// back to point clouds.
type DecoderType int

const (
	// DecoderFC decodes with fully-connected layers only.
	DecoderFC DecoderType = iota
	// DecoderFCUpconv decodes with a fully-connected branch and an
	// up-convolution branch whose outputs are concatenated.
	DecoderFCUpconv
)

// String returns the flag value for the decoder type.
func (dt DecoderType) String() string {
	switch dt {
	case DecoderFC:
		return "fc"
	case DecoderFCUpconv:
		return "fcupconv"
	}
	return fmt.Sprintf("DecoderType(%d)", int(dt))
}

// ParseDecoderType converts a flag value to a DecoderType.
func ParseDecoderType(name string) (DecoderType, error) {
	switch name {
	case "fc":
		return DecoderFC, nil
	case "fcupconv":
		return DecoderFCUpconv, nil
	}
	return 0, errors.Errorf("unknown decoder type %q, valid values are \"fc\" and \"fcupconv\"", name)
}

// LossType selects the reconstruction loss used for training.
type LossType int

const (
	// LossChamfer is the Chamfer distance, averaged over both directions.
	LossChamfer LossType = iota
	// LossEMD is the earth-mover's distance.
	LossEMD
)

// String returns the flag value for the loss type.
func (lt LossType) String() string {
	switch lt {
	case LossChamfer:
		return "cd"
	case LossEMD:
		return "emd"
	}
	return fmt.Sprintf("LossType(%d)", int(lt))
}

// ParseLossType converts a flag value to a LossType.
func ParseLossType(name string) (LossType, error) {
	switch name {
	case "cd":
		return LossChamfer, nil
	case "emd":
		return LossEMD, nil
	}
	return 0, errors.Errorf("unknown loss type %q, valid values are \"cd\" and \"emd\"", name)
}

// Config describes one training run. It is built once, validated, and then
// only read. The JSON tags define the conf.json snapshot layout.
type Config struct {
	// RunID is a fresh UUID identifying this run, also recorded in the run log.
	RunID string `json:"run_id"`

	// Args is the command line that started the run.
	Args []string `json:"args"`

	// DataDir holds the training point clouds. ValDataDir defaults to DataDir.
	DataDir    string `json:"data_dir"`
	ValDataDir string `json:"val_data_dir"`

	// LogDir is the parent of all experiment directories.
	LogDir string `json:"log_dir"`

	// ModelVersion names the model family of the run, see DefaultModelVersion.
	ModelVersion string `json:"model_version"`

	// ExpSuffix distinguishes experiments of the same model version.
	ExpSuffix string `json:"exp_suffix"`

	// Device selects the backend, e.g. "xla:cpu" or "go". Empty picks the default.
	Device string `json:"device"`

	// Seed for all randomness of the run. Negative asks for a random seed,
	// the resolved value is what gets stored here.
	Seed int64 `json:"seed"`

	// NumPoint is the size every point cloud is resampled to, and the size
	// the fully-connected decoder produces.
	NumPoint int `json:"num_point"`

	// FeatDim is the width of the latent feature produced by the encoder.
	FeatDim int `json:"feat_dim"`

	Decoder DecoderType `json:"decoder_type"`
	Loss    LossType    `json:"loss_type"`

	// Probabilistic switches the latent sampler from pass-through-mean to
	// reparameterized sampling with a KL regularizer.
	Probabilistic bool    `json:"probabilistic"`
	KLWeight      float64 `json:"kldiv_loss_weight"`

	Epochs     int `json:"epochs"`
	BatchSize  int `json:"batch_size"`
	NumWorkers int `json:"num_workers"`

	LearningRate float64 `json:"lr"`
	WeightDecay  float64 `json:"weight_decay"`
	LRDecayBy    float64 `json:"lr_decay_by"`
	LRDecayEvery int     `json:"lr_decay_every"`

	// ConsoleLogInterval is the minimum number of training steps between
	// console rows, separately for the train and validation rows.
	ConsoleLogInterval int `json:"console_log_interval"`

	// CheckpointInterval is the minimum number of training steps between
	// checkpoints. The first batch always checkpoints.
	CheckpointInterval int `json:"checkpoint_interval"`

	// NumBatchEveryVisu and NumEpochEveryVisu control how many validation
	// batches get rendered, every how many epochs.
	NumBatchEveryVisu int `json:"num_batch_every_visu"`
	NumEpochEveryVisu int `json:"num_epoch_every_visu"`

	NoConsoleLog bool `json:"no_console_log"`
	NoBoardLog   bool `json:"no_tb_log"`
	NoVisu       bool `json:"no_visu"`

	// Overwrite skips the interactive confirmation when the experiment
	// directory already exists.
	Overwrite bool `json:"overwrite"`

	// Checkpoint optionally points at the ckpts/ directory of a previous run
	// to warm-start from.
	Checkpoint string `json:"checkpoint"`
}

// ExpName composes the experiment name from the model version and suffix.
func (cfg *Config) ExpName() string {
	return fmt.Sprintf("exp-%s-%s", cfg.ModelVersion, cfg.ExpSuffix)
}

// ExpDir is the directory of this run, under LogDir.
func (cfg *Config) ExpDir() string {
	return filepath.Join(cfg.LogDir, cfg.ExpName())
}

// CheckpointsDir is where model checkpoints of this run are saved.
func (cfg *Config) CheckpointsDir() string {
	return filepath.Join(cfg.ExpDir(), "ckpts")
}

// VisuDir is the parent of the per-epoch validation visualization directories.
func (cfg *Config) VisuDir() string {
	return filepath.Join(cfg.ExpDir(), "val_visu")
}

// Validate checks the configuration invariants that don't depend on the
// filesystem. It returns the first problem found.
func (cfg *Config) Validate() error {
	if cfg.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if cfg.ModelVersion != DefaultModelVersion {
		return errors.Errorf("unknown model version %q, only %q is implemented", cfg.ModelVersion, DefaultModelVersion)
	}
	if cfg.ExpSuffix == "" {
		return errors.New("exp_suffix must be set, it names the experiment")
	}
	if strings.ContainsAny(cfg.ExpSuffix, string(os.PathSeparator)) {
		return errors.Errorf("exp_suffix %q must not contain path separators", cfg.ExpSuffix)
	}
	if cfg.NumPoint <= 0 {
		return errors.Errorf("num_point must be positive, got %d", cfg.NumPoint)
	}
	if cfg.FeatDim <= 0 {
		return errors.Errorf("feat_dim must be positive, got %d", cfg.FeatDim)
	}
	switch cfg.Decoder {
	case DecoderFC, DecoderFCUpconv:
	default:
		return errors.Errorf("unknown decoder type %q, valid values are \"fc\" and \"fcupconv\"", cfg.Decoder)
	}
	switch cfg.Loss {
	case LossChamfer, LossEMD:
	default:
		return errors.Errorf("unknown loss type %q, valid values are \"cd\" and \"emd\"", cfg.Loss)
	}
	if cfg.Epochs <= 0 {
		return errors.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return errors.Errorf("batch_size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.LearningRate <= 0 {
		return errors.Errorf("lr must be positive, got %g", cfg.LearningRate)
	}
	if cfg.LRDecayBy <= 0 || cfg.LRDecayBy > 1 {
		return errors.Errorf("lr_decay_by must be in (0, 1], got %g", cfg.LRDecayBy)
	}
	if cfg.LRDecayEvery <= 0 {
		return errors.Errorf("lr_decay_every must be positive, got %d", cfg.LRDecayEvery)
	}
	if cfg.CheckpointInterval <= 0 {
		return errors.Errorf("checkpoint_interval must be positive, got %d", cfg.CheckpointInterval)
	}
	if !cfg.NoVisu {
		if cfg.NumBatchEveryVisu <= 0 {
			return errors.Errorf("num_batch_every_visu must be positive, got %d", cfg.NumBatchEveryVisu)
		}
		if cfg.NumEpochEveryVisu <= 0 {
			return errors.Errorf("num_epoch_every_visu must be positive, got %d", cfg.NumEpochEveryVisu)
		}
	}
	return nil
}

// ConfFileName is the name of the configuration snapshot inside the
// experiment directory.
const ConfFileName = "conf.json"

// Save writes the configuration snapshot to dir/conf.json.
func (cfg *Config) Save(dir string) error {
	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode configuration")
	}
	confPath := filepath.Join(dir, ConfFileName)
	if err := os.WriteFile(confPath, append(encoded, '\n'), 0644); err != nil {
		return errors.Wrapf(err, "failed to write configuration to %q", confPath)
	}
	return nil
}

// Load reads a configuration snapshot previously written by Save.
func Load(dir string) (*Config, error) {
	confPath := filepath.Join(dir, ConfFileName)
	encoded, err := os.ReadFile(confPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration from %q", confPath)
	}
	cfg := &Config{}
	if err := json.Unmarshal(encoded, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration in %q", confPath)
	}
	return cfg, nil
}

// MarshalJSON stores DecoderType by its flag value.
func (dt DecoderType) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

// UnmarshalJSON accepts the flag values "fc" and "fcupconv".
func (dt *DecoderType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseDecoderType(name)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// MarshalJSON stores LossType by its flag value.
func (lt LossType) MarshalJSON() ([]byte, error) {
	return json.Marshal(lt.String())
}

// UnmarshalJSON accepts the flag values "cd" and "emd".
func (lt *LossType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseLossType(name)
	if err != nil {
		return err
	}
	*lt = parsed
	return nil
}
