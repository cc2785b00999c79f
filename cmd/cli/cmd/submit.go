package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"specplane/internal/config"
	"specplane/internal/emitter"
	"specplane/internal/logger"
	"specplane/internal/observability"
	"specplane/internal/registry"
	"specplane/internal/store/postgres"
	"specplane/internal/submit"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Plan tile jobs, write their batch scripts and hand them off",
	Long: `Resolve a selection into per-tile job plans, generate one batch script
per plan and submit each script to the configured execution backend.

A failed submission never stops the remaining plans. The process exit
code equals the number of failed submissions, so batch wrappers can
tell a clean run from a partial one.

Example:
  spectl submit --tile 80605 --group pernight
  spectl submit --nights 20201215 --backend local
  spectl submit --nights 20201215 --scripts-only`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		backendOverride, _ := flags.GetString("backend")
		scriptsOnly, _ := flags.GetBool("scripts-only")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if backendOverride != "" {
			cfg.Backend = backendOverride
		}

		log := newLogger()
		ctx := cmd.Context()

		// Tracing is optional; without a collector address it stays off.
		if cfg.OTELEndpoint != "" {
			shutdownTracer, err := observability.InitTracer(ctx, "specplane-spectl", cfg.OTELEndpoint)
			if err != nil {
				log.Warn("tracing disabled", "error", err)
			} else {
				defer func() {
					if err := shutdownTracer(context.Background()); err != nil {
						log.Debug("tracer shutdown failed", "error", err)
					}
				}()
			}
		}

		plans, err := buildPlans(ctx, cfg, criteriaFromFlags(cmd), log)
		if err != nil {
			return err
		}

		builder := emitter.NewScriptBuilder(emitter.ScriptConfig{
			ReduxDir:      cfg.ReduxDir,
			ScriptDir:     cfg.ScriptDir,
			Spectrographs: cfg.Spectrographs,
			Queue:         cfg.Queue,
			Account:       cfg.Account,
			Walltime:      cfg.Walltime,
			Constraint:    cfg.Constraint,
			Nodes:         cfg.Nodes,
			GroupCmd:      cfg.GroupCmd,
			CoaddCmd:      cfg.CoaddCmd,
			ZFitCmd:       cfg.ZFitCmd,
		})

		if scriptsOnly {
			for _, p := range plans {
				path, err := builder.Write(p)
				if err != nil {
					return err
				}
				cmd.Println(path)
			}
			cmd.Printf("\n%d script(s) written\n", len(plans))
			return nil
		}

		submitter, err := newSubmitter(cfg, log)
		if err != nil {
			return err
		}

		var recorder submit.Recorder
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect submission registry: %w", err)
			}
			defer pg.Close()

			rec := registry.NewRecorder(pg.DB(), pg, cfg.Backend)
			recorder = rec
			ctx = logger.WithRunID(ctx, rec.RunID().String())
			log = logger.FromContext(ctx, log)
		} else {
			log.Debug("submission registry not configured, skipping persistence")
		}

		runner := submit.NewRunner(emitter.New(builder, submitter, log), recorder, submit.Config{
			Concurrency: cfg.SubmitConcurrency,
			Rate:        cfg.SubmitRate,
			Burst:       cfg.SubmitBurst,
		}, log)

		outcome, err := runner.Run(ctx, plans)
		printOutcome(cmd, outcome)
		return err
	},
}

// newSubmitter builds the execution backend named by the config.
func newSubmitter(cfg *config.Config, log *slog.Logger) (emitter.Submitter, error) {
	switch cfg.Backend {
	case "slurm":
		return emitter.NewSlurmSubmitter(cfg.SubmitCmd, log), nil
	case "local":
		return emitter.NewLocalSubmitter(log), nil
	case "docker":
		return emitter.NewDockerSubmitter(cfg.PipelineImage, cfg.ReduxDir, log)
	case "kubernetes":
		return emitter.NewKubernetesSubmitter(emitter.KubernetesConfig{
			Namespace:      cfg.KubernetesNamespace,
			ServiceAccount: cfg.KubernetesServiceAccount,
			PipelineImage:  cfg.PipelineImage,
			CPULimit:       cfg.KubernetesCPULimit,
			MemoryLimit:    cfg.KubernetesMemoryLimit,
			DataClaim:      cfg.KubernetesDataClaim,
			ReduxDir:       cfg.ReduxDir,
		}, log)
	default:
		return nil, fmt.Errorf("unknown backend %q (want slurm, local, docker or kubernetes)", cfg.Backend)
	}
}

func printOutcome(cmd *cobra.Command, outcome submit.Outcome) {
	for _, sub := range outcome.Submitted {
		cmd.Printf("✓ %s submitted (job %s)\n", filepath.Base(sub.ScriptPath), sub.BatchJobID)
	}
	for _, f := range outcome.Failures {
		cmd.Printf("✗ %s: %v\n", f.Plan.Label(), f.Err)
	}
	cmd.Printf("\n%d submitted, %d failed\n", len(outcome.Submitted), len(outcome.Failures))
}

func init() {
	addSelectionFlags(submitCmd)

	flags := submitCmd.Flags()
	flags.String("backend", "", "override the configured backend (slurm, local, docker, kubernetes)")
	flags.Bool("scripts-only", false, "write the batch scripts but do not submit them")

	rootCmd.AddCommand(submitCmd)
}
