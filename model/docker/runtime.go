package docker

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hyperbench/global"
	"hyperbench/model"
)

// Client is the part of *docker.Client the runtime uses.
type Client interface {
	NetworkInfo(id string) (*docker.Network, error)
	CreateNetwork(opts docker.CreateNetworkOptions) (*docker.Network, error)
	PullImage(opts docker.PullImageOptions, auth docker.AuthConfiguration) error
	CreateContainer(opts docker.CreateContainerOptions) (*docker.Container, error)
	StartContainerWithContext(id string, hostConfig *docker.HostConfig, ctx context.Context) error
	InspectContainerWithOptions(opts docker.InspectContainerOptions) (*docker.Container, error)
	RemoveContainer(opts docker.RemoveContainerOptions) error
	CreateExec(opts docker.CreateExecOptions) (*docker.Exec, error)
	StartExec(id string, opts docker.StartExecOptions) error
	InspectExec(id string) (*docker.ExecInspect, error)
}

// Runtime runs every node as a container on one user defined bridge network.
type Runtime struct {
	Client Client
	// Base is the host directory mount sources are relative to.
	Base string
	// Compose dumps a docker-compose file per started container.
	Compose bool

	mu        sync.Mutex
	networkID map[string]string
}

func NewRuntime(client Client, base string) *Runtime {
	return &Runtime{
		Client:    client,
		Base:      base,
		Compose:   true,
		networkID: map[string]string{},
	}
}

// ensureNetwork creates name unless it exists.
func (r *Runtime) ensureNetwork(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.networkID[name]; ok {
		return id, nil
	}
	nw, err := r.Client.NetworkInfo(name)
	if err != nil {
		if _, ok := err.(*docker.NoSuchNetwork); !ok {
			return "", errors.WithMessagef(err, "fail to inspect network %s", name)
		}
		global.Logger.Info("create docker network", zap.String("network", name))
		nw, err = r.Client.CreateNetwork(docker.CreateNetworkOptions{
			Name:    name,
			Driver:  "bridge",
			Context: ctx,
		})
		if err != nil {
			return "", errors.Wrapf(err, "failed creating new docker network with ID='%s'", name)
		}
	}
	r.networkID[name] = nw.ID
	return nw.ID, nil
}

func (r *Runtime) createOptions(ctx context.Context, spec *model.ContainerSpec, networkID string) docker.CreateContainerOptions {
	exposed := map[docker.Port]struct{}{}
	bindings := map[docker.Port][]docker.PortBinding{}
	for _, p := range spec.Ports {
		port := docker.Port(strconv.Itoa(p) + "/tcp")
		exposed[port] = struct{}{}
		bindings[port] = []docker.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(p)}}
	}

	hostConfig := &docker.HostConfig{
		Binds:        r.binds(spec),
		PortBindings: bindings,
		NetworkMode:  spec.Network,
		NanoCPUs:     spec.NanoCPUs,
	}
	if spec.NetAdmin {
		hostConfig.CapAdd = []string{"NET_ADMIN"}
	}

	opts := docker.CreateContainerOptions{
		Name: spec.Name,
		Config: &docker.Config{
			Hostname:     spec.Name,
			Image:        spec.Image,
			Cmd:          spec.Command,
			Env:          spec.EnvList(),
			Labels:       spec.Labels,
			User:         spec.User,
			ExposedPorts: exposed,
		},
		HostConfig: hostConfig,
		Context:    ctx,
	}
	if spec.Network != "" {
		opts.NetworkingConfig = &docker.NetworkingConfig{
			EndpointsConfig: map[string]*docker.EndpointConfig{
				spec.Network: {
					NetworkID: networkID,
					Aliases:   []string{spec.Name},
				},
			},
		}
	}
	return opts
}

func (r *Runtime) binds(spec *model.ContainerSpec) []string {
	out := make([]string, 0, len(spec.Mounts)+1)
	for _, m := range spec.Mounts {
		src := m.Source
		if !filepath.IsAbs(src) {
			src = filepath.Join(r.Base, src)
		}
		out = append(out, src+":"+m.Target)
	}
	if spec.Labels["tier"] == "peer" {
		out = append(out, "/var/run/docker.sock:/var/run/docker.sock")
	}
	return out
}

// Start creates and starts spec. A running container of the same name is
// kept, a stopped one is replaced.
func (r *Runtime) Start(ctx context.Context, spec *model.ContainerSpec) error {
	global.Logger.Info(fmt.Sprintf("[Start container %s]", spec.Name))

	running, err := r.Running(ctx, spec.Name)
	if err != nil {
		return err
	}
	if running {
		global.Logger.Info("container already running", zap.String("node", spec.Name))
		return nil
	}
	if err := r.Remove(ctx, spec.Name); err != nil {
		return err
	}

	var networkID string
	if spec.Network != "" {
		if networkID, err = r.ensureNetwork(ctx, spec.Network); err != nil {
			return err
		}
	}

	opts := r.createOptions(ctx, spec, networkID)
	container, err := r.Client.CreateContainer(opts)
	if err == docker.ErrNoSuchImage {
		repo, tag := docker.ParseRepositoryTag(spec.Image)
		global.Logger.Info("pull image", zap.String("image", spec.Image))
		if err := r.Client.PullImage(docker.PullImageOptions{Repository: repo, Tag: tag, Context: ctx}, docker.AuthConfiguration{}); err != nil {
			return errors.WithMessagef(err, "fail to pull %s", spec.Image)
		}
		container, err = r.Client.CreateContainer(opts)
	}
	if err != nil {
		return errors.WithMessagef(err, "fail to create container %s", spec.Name)
	}

	if err := r.Client.StartContainerWithContext(container.ID, nil, ctx); err != nil {
		return errors.WithMessagef(err, "fail to start container %s", spec.Name)
	}

	if r.Compose {
		if err := WriteCompose(model.NewLayout(r.Base).ComposeFile(spec.Name), spec, r.Base); err != nil {
			global.Logger.Warn("fail to dump compose file", zap.String("node", spec.Name), zap.Error(err))
		}
	}
	return nil
}

func (r *Runtime) Remove(ctx context.Context, name string) error {
	err := r.Client.RemoveContainer(docker.RemoveContainerOptions{
		ID:            name,
		Force:         true,
		RemoveVolumes: true,
		Context:       ctx,
	})
	if err != nil {
		if _, ok := err.(*docker.NoSuchContainer); ok {
			return nil
		}
		return errors.Wrapf(err, "failed removing docker container='%s'", name)
	}
	global.Logger.Info("container removed", zap.String("node", name))
	return nil
}

func (r *Runtime) Running(ctx context.Context, name string) (bool, error) {
	c, err := r.Client.InspectContainerWithOptions(docker.InspectContainerOptions{ID: name, Context: ctx})
	if err != nil {
		if _, ok := err.(*docker.NoSuchContainer); ok {
			return false, nil
		}
		return false, errors.WithMessagef(err, "fail to inspect %s", name)
	}
	return c.State.Running, nil
}

// Exec runs cmd in name and returns its combined output. A non zero exit code
// is an error.
func (r *Runtime) Exec(ctx context.Context, name string, cmd ...string) (string, error) {
	exec, err := r.Client.CreateExec(docker.CreateExecOptions{
		Container:    name,
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		Context:      ctx,
	})
	if err != nil {
		return "", errors.WithMessagef(err, "fail to create exec in %s", name)
	}

	var out bytes.Buffer
	if err := r.Client.StartExec(exec.ID, docker.StartExecOptions{
		OutputStream: &out,
		ErrorStream:  &out,
		Context:      ctx,
	}); err != nil {
		return out.String(), errors.WithMessagef(err, "fail to exec in %s", name)
	}

	inspect, err := r.Client.InspectExec(exec.ID)
	if err != nil {
		return out.String(), errors.WithMessagef(err, "fail to inspect exec in %s", name)
	}
	if inspect.ExitCode != 0 {
		return out.String(), errors.Errorf("command in %s exited with %d", name, inspect.ExitCode)
	}
	return out.String(), nil
}
