package common

import (
	"log"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"go.uber.org/zap"
)

var Logger *zap.Logger

func InitLogger() {
	if Logger != nil {
		return
	}
	l, _ := zap.NewProduction()
	Logger = l
}

// InitHertzLogger routes hlog through the std logger so Hertz internals
// don't write raw to stderr.
func InitHertzLogger() { hlog.SetOutput(log.Writer()) }
