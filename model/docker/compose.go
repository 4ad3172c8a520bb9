package docker

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"hyperbench/model"
)

type ComposeFile struct {
	Version  string                    `yaml:"version"`
	Networks map[string]ComposeNetwork `yaml:"networks,omitempty"`
	Services map[string]ComposeService `yaml:"services"`
}

type ComposeNetwork struct {
	Name     string `yaml:"name"`
	External bool   `yaml:"external"`
}

type ComposeService struct {
	ContainerName string            `yaml:"container_name"`
	Image         string            `yaml:"image"`
	Command       []string          `yaml:"command,omitempty"`
	Environment   []string          `yaml:"environment,omitempty"`
	Ports         []string          `yaml:"ports,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Labels        map[string]string `yaml:"labels,omitempty"`
	CapAdd        []string          `yaml:"cap_add,omitempty"`
	User          string            `yaml:"user,omitempty"`
	Networks      []string          `yaml:"networks,omitempty"`
}

// NewCompose describes spec as a single service compose file.
func NewCompose(spec *model.ContainerSpec, base string) *ComposeFile {
	svc := ComposeService{
		ContainerName: spec.Name,
		Image:         spec.Image,
		Command:       spec.Command,
		Environment:   spec.EnvList(),
		Labels:        spec.Labels,
		User:          spec.User,
	}
	for _, p := range spec.Ports {
		svc.Ports = append(svc.Ports, strconv.Itoa(p)+":"+strconv.Itoa(p))
	}
	for _, m := range spec.Mounts {
		src := m.Source
		if !filepath.IsAbs(src) {
			src = filepath.Join(base, src)
		}
		svc.Volumes = append(svc.Volumes, src+":"+m.Target)
	}
	if spec.NetAdmin {
		svc.CapAdd = []string{"NET_ADMIN"}
	}

	c := &ComposeFile{
		Version:  "3.7",
		Services: map[string]ComposeService{spec.Name: svc},
	}
	if spec.Network != "" {
		svc.Networks = []string{spec.Network}
		c.Services[spec.Name] = svc
		c.Networks = map[string]ComposeNetwork{
			spec.Network: {Name: spec.Network, External: true},
		}
	}
	return c
}

func WriteCompose(path string, spec *model.ContainerSpec, base string) error {
	data, err := yaml.Marshal(NewCompose(spec, base))
	if err != nil {
		return errors.WithMessage(err, "fail to marshal compose file")
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.WithMessage(err, "fail to create compose dir")
	}
	return ioutil.WriteFile(path, data, 0644)
}
