package global

import (
	"go.uber.org/zap"
)

var (
	// global variables go here.
	Logger *zap.Logger
)

func init() {
	initLogger()
}
