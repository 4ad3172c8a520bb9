package model

import (
	"sort"
)

// Mount binds Source, a path relative to the network base, at Target.
type Mount struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// ContainerSpec is the runtime independent description of one node process.
type ContainerSpec struct {
	Name     string            `json:"name"`
	Network  string            `json:"network"`
	Image    string            `json:"image"`
	Command  []string          `json:"command"`
	Env      map[string]string `json:"env"`
	Ports    []int             `json:"ports"`
	Mounts   []Mount           `json:"mounts"`
	Labels   map[string]string `json:"labels"`
	NetAdmin bool              `json:"netAdmin"`
	User     string            `json:"user,omitempty"`
	NanoCPUs int64             `json:"nanoCpus,omitempty"`
}

// EnvList renders Env as sorted KEY=VALUE pairs.
func (c *ContainerSpec) EnvList() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + c.Env[k]
	}
	return out
}
