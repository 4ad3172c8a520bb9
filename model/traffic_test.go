package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrafficCommand(t *testing.T) {
	tests := []struct {
		shaping TrafficShaping
		want    string
	}{
		{TrafficShaping{}, "tc qdisc add dev eth0 root netem rate 1000000mbit delay 0ms 0ms loss 0%"},
		{TrafficShaping{Throughput: 100, Loss: 0.5}, "tc qdisc add dev eth0 root netem rate 100mbit delay 0ms 0ms loss 0.5%"},
		{TrafficShaping{Throughput: 100, Delay: 50, Jitter: 10, Loss: 1},
			"tc qdisc add dev eth0 root netem rate 100mbit delay 50ms 10ms distribution normal loss 1%"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, strings.Join(tc.shaping.Command(), " "))
	}
}

func TestTrafficApplies(t *testing.T) {
	var none *TrafficShaping
	assert.False(t, none.Applies("peer1.org1.org"))
	assert.False(t, (&TrafficShaping{}).Applies("peer1.org1.org"))
	assert.True(t, (&TrafficShaping{Enabled: true}).Applies("peer1.org1.org"))

	filtered := &TrafficShaping{Enabled: true, Hosts: []string{"peer2.org1.org"}}
	assert.False(t, filtered.Applies("peer1.org1.org"))
	assert.True(t, filtered.Applies("peer2.org1.org"))
}
