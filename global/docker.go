package global

import (
	docker "github.com/fsouza/go-dockerclient"
	"github.com/pkg/errors"
)

// NewDockerClient connects to endpoint, falling back to the DOCKER_* env.
func NewDockerClient(endpoint string) (*docker.Client, error) {
	var (
		client *docker.Client
		err    error
	)
	if endpoint == "" {
		client, err = docker.NewClientFromEnv()
	} else {
		client, err = docker.NewClient(endpoint)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "Get docker client error")
	}
	return client, nil
}
