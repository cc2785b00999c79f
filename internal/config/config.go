// Package config loads specplane configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// ReduxDir is the root of the reduction tree. Output keys, exposure
	// frames and generated scripts all live under it.
	ReduxDir string

	// TableDir is where per-night exposure tables are kept.
	// Defaults to <ReduxDir>/exposure_tables.
	TableDir string

	// ScriptDir is where generated batch scripts are written.
	// Defaults to <ReduxDir>/run/scripts/tiles.
	ScriptDir string

	// CutoverNight is the last night for which a missing exposure table is
	// an expected gap rather than an error.
	CutoverNight int64

	// Spectrographs is the number of per-spectrograph worker units in a
	// tile job.
	Spectrographs int

	// LoadParallel bounds how many exposure tables are read concurrently.
	LoadParallel int

	// Backend selects the submission backend: slurm, local, docker or
	// kubernetes.
	Backend string

	// Batch scheduler directives
	Queue      string
	Account    string
	Walltime   string
	Constraint string
	Nodes      int
	SubmitCmd  string

	// Pipeline stage commands
	GroupCmd string
	CoaddCmd string
	ZFitCmd  string

	// Submission control
	SubmitConcurrency int
	SubmitRate        float64
	SubmitBurst       int

	// DatabaseURL is the submission registry connection string. Optional
	// for the CLI, required for the dashboard service.
	DatabaseURL string

	// HTTPPort is the dashboard service port.
	HTTPPort int

	// APIRate throttles dashboard API requests per client address,
	// in requests per second. Zero disables throttling.
	APIRate  float64
	APIBurst int

	// DashboardURL is where the CLI finds the dashboard service.
	DashboardURL string

	// Container backend settings
	PipelineImage            string
	KubernetesNamespace      string
	KubernetesServiceAccount string
	KubernetesCPULimit       string
	KubernetesMemoryLimit    string
	KubernetesDataClaim      string

	// OTELEndpoint is the OTLP collector address. Tracing is disabled
	// when empty.
	OTELEndpoint string
}

// Load reads configuration from the given file (or specplane.yaml in the
// usual places when path is empty) and from SPECPLANE_* environment
// variables. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("specplane")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/specplane")
	}

	v.SetEnvPrefix("SPECPLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine; env vars and defaults carry the day.
	}

	cfg := &Config{
		ReduxDir:      v.GetString("redux_dir"),
		TableDir:      v.GetString("table_dir"),
		ScriptDir:     v.GetString("script_dir"),
		CutoverNight:  v.GetInt64("cutover_night"),
		Spectrographs: v.GetInt("spectrographs"),
		LoadParallel:  v.GetInt("load_parallel"),

		Backend:    v.GetString("backend"),
		Queue:      v.GetString("queue"),
		Account:    v.GetString("account"),
		Walltime:   v.GetString("walltime"),
		Constraint: v.GetString("constraint"),
		Nodes:      v.GetInt("nodes"),
		SubmitCmd:  v.GetString("submit_cmd"),

		GroupCmd: v.GetString("group_cmd"),
		CoaddCmd: v.GetString("coadd_cmd"),
		ZFitCmd:  v.GetString("zfit_cmd"),

		SubmitConcurrency: v.GetInt("submit_concurrency"),
		SubmitRate:        v.GetFloat64("submit_rate"),
		SubmitBurst:       v.GetInt("submit_burst"),

		DatabaseURL:  v.GetString("database_url"),
		HTTPPort:     v.GetInt("http_port"),
		APIRate:      v.GetFloat64("api_rate"),
		APIBurst:     v.GetInt("api_burst"),
		DashboardURL: v.GetString("dashboard_url"),

		PipelineImage:            v.GetString("pipeline_image"),
		KubernetesNamespace:      v.GetString("kubernetes_namespace"),
		KubernetesServiceAccount: v.GetString("kubernetes_service_account"),
		KubernetesCPULimit:       v.GetString("kubernetes_cpu_limit"),
		KubernetesMemoryLimit:    v.GetString("kubernetes_memory_limit"),
		KubernetesDataClaim:      v.GetString("kubernetes_data_claim"),

		OTELEndpoint: v.GetString("otel_endpoint"),
	}

	if cfg.ReduxDir == "" {
		return nil, fmt.Errorf("redux_dir is required (set it in %s or via SPECPLANE_REDUX_DIR)", configName(path))
	}

	if cfg.TableDir == "" {
		cfg.TableDir = filepath.Join(cfg.ReduxDir, "exposure_tables")
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = filepath.Join(cfg.ReduxDir, "run", "scripts", "tiles")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cutover_night", 20201214)
	v.SetDefault("spectrographs", 10)
	v.SetDefault("load_parallel", 8)

	v.SetDefault("backend", "slurm")
	v.SetDefault("queue", "regular")
	v.SetDefault("walltime", "01:00:00")
	v.SetDefault("nodes", 1)
	v.SetDefault("submit_cmd", "sbatch")

	v.SetDefault("group_cmd", "desi_group_spectra")
	v.SetDefault("coadd_cmd", "desi_coadd_spectra")
	v.SetDefault("zfit_cmd", "rrdesi")

	v.SetDefault("submit_concurrency", 4)
	v.SetDefault("submit_rate", 1.0)
	v.SetDefault("submit_burst", 5)

	v.SetDefault("http_port", 7171)
	v.SetDefault("api_rate", 10.0)
	v.SetDefault("api_burst", 20)
	v.SetDefault("dashboard_url", "http://localhost:7171")

	v.SetDefault("kubernetes_namespace", "default")
	v.SetDefault("kubernetes_cpu_limit", "4")
	v.SetDefault("kubernetes_memory_limit", "8Gi")
}

func configName(path string) string {
	if path != "" {
		return path
	}
	return "specplane.yaml"
}
