package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"hyperbench/global"
	"hyperbench/model"
)

// TrafficService impairs the egress link of containers with netem.
type TrafficService struct {
	rt      Runtime
	shaping *model.TrafficShaping
}

func NewTrafficService(rt Runtime, shaping *model.TrafficShaping) *TrafficService {
	return &TrafficService{rt: rt, shaping: shaping}
}

// Apply shapes host when the configured filter selects it.
func (t *TrafficService) Apply(ctx context.Context, host string) error {
	if !t.shaping.Applies(host) {
		return nil
	}
	cmd := t.shaping.Command()
	out, err := t.rt.Exec(ctx, host, cmd...)
	if err != nil {
		return model.NewError(model.ErrProvisioning, err, "fail to shape traffic of %s: %s", host, strings.TrimSpace(out))
	}
	global.Logger.Info("traffic shaped", zap.String("node", host), zap.String("cmd", strings.Join(cmd, " ")))
	return nil
}
