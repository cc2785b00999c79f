package emitter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"specplane/internal/planner"
)

// DockerSubmitter runs tile job scripts inside the pipeline container
// image. Containers are started detached, so submission parallels the
// scheduler backends: the Docker daemon owns the job after hand-off.
type DockerSubmitter struct {
	client   *client.Client
	image    string
	reduxDir string
	log      *slog.Logger
}

// NewDockerSubmitter creates a submitter talking to the Docker daemon
// configured through the standard environment variables (DOCKER_HOST
// and friends).
func NewDockerSubmitter(pipelineImage, reduxDir string, log *slog.Logger) (*DockerSubmitter, error) {
	if pipelineImage == "" {
		return nil, fmt.Errorf("docker backend needs a pipeline image")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerSubmitter{client: cli, image: pipelineImage, reduxDir: reduxDir, log: log}, nil
}

func (d *DockerSubmitter) Submit(ctx context.Context, scriptPath string, plan planner.JobPlan) (string, error) {
	if _, err := d.client.ImageInspect(ctx, d.image); err != nil {
		reader, err := d.client.ImagePull(ctx, d.image, image.PullOptions{})
		if err != nil {
			return "", fmt.Errorf("pull image %s: %w", d.image, err)
		}
		defer reader.Close()
		io.Copy(io.Discard, reader)
	}

	containerConfig := &container.Config{
		Image: d.image,
		Cmd:   []string{"/bin/bash", scriptPath},
		Env: []string{
			"SPECPLANE_TILE=" + strconv.FormatInt(plan.TileID, 10),
			"SPECPLANE_LABEL=" + plan.Label(),
		},
		Labels: map[string]string{
			"io.specplane.tile":  strconv.FormatInt(plan.TileID, 10),
			"io.specplane.group": string(plan.Group),
		},
	}
	// The reduction tree and the script directory are mounted at their
	// host paths so the script's absolute paths resolve inside the
	// container. The script dir usually lives under the tree, in which
	// case the second bind is redundant but harmless.
	hostConfig := &container.HostConfig{
		Binds: []string{
			d.reduxDir + ":" + d.reduxDir,
			filepath.Dir(scriptPath) + ":" + filepath.Dir(scriptPath),
		},
	}

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	id := resp.ID
	if len(id) > 12 {
		id = id[:12]
	}
	d.log.Debug("container started", "label", plan.Label(), "container_id", id)
	return id, nil
}
