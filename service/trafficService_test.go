package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperbench/model"
)

func TestTrafficApply(t *testing.T) {
	rt := newFakeRuntime(t.TempDir())
	ctx := context.Background()
	for _, name := range []string{"peer1.org1.org", "peer2.org1.org"} {
		require.NoError(t, rt.Start(ctx, &model.ContainerSpec{Name: name}))
	}

	shaping := &model.TrafficShaping{Enabled: true, Throughput: 100, Delay: 20, Jitter: 5, Loss: 1, Hosts: []string{"peer1.org1.org"}}
	ts := NewTrafficService(rt, shaping)

	require.NoError(t, ts.Apply(ctx, "peer1.org1.org"))
	require.NoError(t, ts.Apply(ctx, "peer2.org1.org"))
	require.Len(t, rt.execs["peer1.org1.org"], 1)
	assert.Empty(t, rt.execs["peer2.org1.org"])
	assert.Equal(t, strings.Join(shaping.Command(), " "), strings.Join(rt.execs["peer1.org1.org"][0], " "))
}

func TestTrafficDisabled(t *testing.T) {
	rt := newFakeRuntime(t.TempDir())
	ts := NewTrafficService(rt, nil)
	assert.NoError(t, ts.Apply(context.Background(), "missing"))
}

func TestTrafficFailure(t *testing.T) {
	rt := newFakeRuntime(t.TempDir())
	ts := NewTrafficService(rt, &model.TrafficShaping{Enabled: true, Throughput: 1})
	assert.Error(t, ts.Apply(context.Background(), "missing"))
}
