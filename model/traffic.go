package model

import (
	"fmt"
	"strings"
)

// DefaultThroughput is high enough to leave the link unthrottled; netem
// behaves best when a rate is always given.
const DefaultThroughput = 1000000

// TrafficShaping describes a netem impairment applied inside node containers.
type TrafficShaping struct {
	Enabled    bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Throughput int      `json:"throughput" yaml:"throughput" mapstructure:"throughput"`
	Delay      int      `json:"delay" yaml:"delay" mapstructure:"delay"`
	Jitter     int      `json:"jitter" yaml:"jitter" mapstructure:"jitter"`
	Loss       float64  `json:"loss" yaml:"loss" mapstructure:"loss"`
	Hosts      []string `json:"hosts" yaml:"hosts" mapstructure:"hosts"`
}

// Applies reports whether host is covered. An empty host filter covers all.
func (t *TrafficShaping) Applies(host string) bool {
	if t == nil || !t.Enabled {
		return false
	}
	if len(t.Hosts) == 0 {
		return true
	}
	for _, h := range t.Hosts {
		if h == host {
			return true
		}
	}
	return false
}

func (t *TrafficShaping) Command() []string {
	throughput := t.Throughput
	if throughput <= 0 {
		throughput = DefaultThroughput
	}
	var cmd string
	if t.Delay == 0 {
		cmd = fmt.Sprintf("tc qdisc add dev eth0 root netem rate %dmbit delay 0ms 0ms loss %s%%",
			throughput, formatLoss(t.Loss))
	} else {
		cmd = fmt.Sprintf("tc qdisc add dev eth0 root netem rate %dmbit delay %dms %dms distribution normal loss %s%%",
			throughput, t.Delay, t.Jitter, formatLoss(t.Loss))
	}
	return strings.Fields(cmd)
}

func formatLoss(l float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", l), "0"), ".")
}
