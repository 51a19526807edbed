// Command lake-pgnn trains and evaluates a physics-guided neural network
// for lake temperature prediction. The network fits observed temperatures
// while a density-depth consistency penalty discourages predictions that
// imply denser water above lighter water.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limnoml/lake-pgnn/checkpoints"
	"github.com/limnoml/lake-pgnn/config"
	"github.com/limnoml/lake-pgnn/dataset"
	"github.com/limnoml/lake-pgnn/training"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "lake-pgnn",
		Short: "Physics-guided neural network for lake temperature prediction",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to experiment YAML (defaults built in)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newTrainCmd(), newEvalCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit the temperature network and report test metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runTraining(cfg, logger)
		},
	}
}

func runTraining(cfg *config.Config, logger *zap.Logger) error {
	training.SetRandomSeed(cfg.Model.Seed)

	data, err := dataset.Load(cfg.Data.Labeled, cfg.Data.Unlabeled, cfg.Data.TrainRows)
	if err != nil {
		return fmt.Errorf("failed to load lake data: %w", err)
	}
	logger.Info("data loaded",
		zap.Int("train_samples", data.Train.Len()),
		zap.Int("test_samples", data.Test.Len()),
		zap.Int("depth_pairs", data.Pairs.Len()),
		zap.Int("feature_dim", data.FeatureDim()),
	)

	model, err := buildModel(cfg, data.FeatureDim())
	if err != nil {
		return err
	}

	criterion, err := training.NewPhysicsInformedLoss(cfg.Training.Lambda)
	if err != nil {
		return err
	}

	adamCfg := training.DefaultAdamConfig()
	adamCfg.LearningRate = cfg.Training.LearningRate
	adamCfg.ClipNorm = cfg.Training.ClipNorm
	optimizer, err := training.NewAdam(model.Parameters(), adamCfg)
	if err != nil {
		return err
	}

	trainSplit, validSplit, err := data.Train.SplitFraction(cfg.Training.ValidationSplit)
	if err != nil {
		return fmt.Errorf("failed to carve validation split: %w", err)
	}

	trainLoader, err := training.NewDataLoader(trainSplit, cfg.Training.BatchSize, true)
	if err != nil {
		return err
	}
	validLoader, err := training.NewDataLoader(validSplit, cfg.Training.BatchSize, false)
	if err != nil {
		return err
	}

	trainer, err := training.NewTrainer(model, optimizer, criterion, data.Pairs, training.TrainingConfig{
		Epochs:        cfg.Training.Epochs,
		EarlyStopping: true,
		Patience:      cfg.Training.Patience,
		LogEvery:      cfg.Training.LogEvery,
	}, logger)
	if err != nil {
		return err
	}

	switch cfg.Training.LRSchedule {
	case "step":
		trainer.SetScheduler(training.NewStepLRScheduler(cfg.Training.Epochs/4, 0.5), cfg.Training.LearningRate)
	case "exponential":
		trainer.SetScheduler(training.NewExponentialLRScheduler(0.99), cfg.Training.LearningRate)
	}

	if err := trainer.Train(trainLoader, validLoader); err != nil {
		return err
	}

	report, err := training.Evaluate(model, data.Test, data.Pairs)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	fmt.Printf("Test RMSE: %.4f\n", report.Metrics.RMSE)
	fmt.Printf("Physics inconsistency: %.6f\n", report.MeanViolation)

	if cfg.Output.Checkpoint != "" {
		history := trainer.Metrics()
		state := checkpoints.TrainingState{
			LearningRate: optimizer.GetLR(),
			Lambda:       cfg.Training.Lambda,
		}
		if len(history) > 0 {
			state.Epoch = history[len(history)-1].Epoch
		}
		cp, err := checkpoints.FromModule(model, state)
		if err != nil {
			return fmt.Errorf("failed to build checkpoint: %w", err)
		}
		if err := cp.Save(cfg.Output.Checkpoint); err != nil {
			return err
		}
		logger.Info("checkpoint written", zap.String("path", cfg.Output.Checkpoint))
	}

	if cfg.Output.LossPlot != "" {
		if err := training.PlotLossCurves(trainer.Metrics(), cfg.Output.LossPlot); err != nil {
			return err
		}
		logger.Info("loss plot written", zap.String("path", cfg.Output.LossPlot))
	}

	return nil
}

func newEvalCmd() *cobra.Command {
	var checkpointPath string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a saved checkpoint against the test partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if checkpointPath == "" {
				checkpointPath = cfg.Output.Checkpoint
			}
			if checkpointPath == "" {
				return fmt.Errorf("no checkpoint path given (use --checkpoint or set output.checkpoint)")
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			data, err := dataset.Load(cfg.Data.Labeled, cfg.Data.Unlabeled, cfg.Data.TrainRows)
			if err != nil {
				return fmt.Errorf("failed to load lake data: %w", err)
			}

			model, err := buildModel(cfg, data.FeatureDim())
			if err != nil {
				return err
			}

			cp, err := checkpoints.Load(checkpointPath)
			if err != nil {
				return err
			}
			if err := cp.ApplyTo(model); err != nil {
				return fmt.Errorf("checkpoint does not match configured model: %w", err)
			}
			logger.Info("checkpoint restored",
				zap.String("path", checkpointPath),
				zap.Int("epoch", cp.TrainingState.Epoch),
			)

			report, err := training.Evaluate(model, data.Test, data.Pairs)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			fmt.Printf("Test RMSE: %.4f\n", report.Metrics.RMSE)
			fmt.Printf("Physics inconsistency: %.6f\n", report.MeanViolation)
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint to evaluate")
	return cmd
}

func buildModel(cfg *config.Config, featureDim int) (*training.Sequential, error) {
	sizes := append(append([]int{}, cfg.Model.Hidden...), 1)
	model, err := training.NewMLP(featureDim, sizes...)
	if err != nil {
		return nil, fmt.Errorf("failed to build model: %w", err)
	}
	return model, nil
}
