package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"specplane/internal/planner"
)

// KubernetesConfig holds settings for the Kubernetes submission
// backend.
type KubernetesConfig struct {
	// Namespace where tile jobs are created.
	Namespace string
	// ServiceAccount for job pods (optional).
	ServiceAccount string
	// PipelineImage is the container image carrying the spectroscopic
	// pipeline commands.
	PipelineImage string
	// Resource limits per tile job pod.
	CPULimit    string
	MemoryLimit string
	// DataClaim names the PersistentVolumeClaim holding the reduction
	// tree. It is mounted at ReduxDir inside the job pod, which also
	// covers the generated scripts since they live under the tree.
	DataClaim string
	ReduxDir  string
}

// KubernetesSubmitter runs tile jobs as Kubernetes Jobs. Like the
// Slurm backend it only enqueues: the cluster owns the job after
// creation.
type KubernetesSubmitter struct {
	clientset kubernetes.Interface
	config    KubernetesConfig
	log       *slog.Logger
}

// homeDir returns the user's home directory.
func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return os.Getenv("USERPROFILE") // Windows
}

// NewKubernetesSubmitter creates a submitter for the given cluster
// settings. It tries in-cluster configuration first and falls back to
// the local kubeconfig for development.
func NewKubernetesSubmitter(cfg KubernetesConfig, log *slog.Logger) (*KubernetesSubmitter, error) {
	if cfg.PipelineImage == "" {
		return nil, fmt.Errorf("kubernetes backend needs a pipeline image")
	}
	if cfg.DataClaim == "" {
		return nil, fmt.Errorf("kubernetes backend needs a data claim for the reduction tree")
	}

	config, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := filepath.Join(homeDir(), ".kube", "config")
		log.Debug("in-cluster config not available, trying kubeconfig", "path", kubeconfig)
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("build kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes clientset: %w", err)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.CPULimit == "" {
		cfg.CPULimit = "4"
	}
	if cfg.MemoryLimit == "" {
		cfg.MemoryLimit = "8Gi"
	}

	return &KubernetesSubmitter{clientset: clientset, config: cfg, log: log}, nil
}

func (k *KubernetesSubmitter) Submit(ctx context.Context, scriptPath string, plan planner.JobPlan) (string, error) {
	// Job names must be unique per submission so a resubmitted tile
	// does not collide with its failed predecessor.
	jobName := fmt.Sprintf("ztile-%d-%d", plan.TileID, time.Now().UnixNano())

	labels := map[string]string{
		"app.kubernetes.io/managed-by": "specplane",
		"specplane.io/tile":            strconv.FormatInt(plan.TileID, 10),
		"specplane.io/group":           string(plan.Group),
	}

	resources := corev1.ResourceRequirements{
		Limits: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(k.config.CPULimit),
			corev1.ResourceMemory: resource.MustParse(k.config.MemoryLimit),
		},
	}

	// The registry drives retries, not the cluster.
	backoffLimit := int32(0)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: k.config.Namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels,
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:      "tile-job",
							Image:     k.config.PipelineImage,
							Command:   []string{"/bin/bash", scriptPath},
							Resources: resources,
							Env: []corev1.EnvVar{
								{Name: "SPECPLANE_TILE", Value: strconv.FormatInt(plan.TileID, 10)},
								{Name: "SPECPLANE_LABEL", Value: plan.Label()},
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "redux", MountPath: k.config.ReduxDir},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "redux",
							VolumeSource: corev1.VolumeSource{
								PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
									ClaimName: k.config.DataClaim,
								},
							},
						},
					},
				},
			},
		},
	}

	if k.config.ServiceAccount != "" {
		job.Spec.Template.Spec.ServiceAccountName = k.config.ServiceAccount
	}

	createdJob, err := k.clientset.BatchV1().Jobs(k.config.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return "", fmt.Errorf("create kubernetes job: %w", err)
	}

	k.log.Debug("kubernetes job created", "label", plan.Label(), "job", createdJob.Name, "namespace", k.config.Namespace)
	return createdJob.Name, nil
}
