package node

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewLogger builds the process logger. Debug level uses the development
// encoder; everything else the production JSON encoder. An empty file logs to
// stderr.
func NewLogger(level, file string) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}
	cfg.Level = lvl
	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}
	logger, err := cfg.Build()
	return logger, errors.Wrap(err, "create logger")
}
