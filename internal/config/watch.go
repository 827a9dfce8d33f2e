package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch loads the configuration at configPath, hands it to onChange, and
// reloads it on every write to the file until ctx is done. Reload errors
// are passed to onChange rather than ending the watch.
func Watch(ctx context.Context, logger *zap.Logger, configPath string, onChange func(*Configuration, error)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file, %s", err)
	}
	onChange(decode(v))

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Debug("configuration changed",
			zap.String("op", "config.Watch"),
			zap.String("file", e.Name),
			zap.String("event", e.Op.String()),
		)
		if ctx.Err() != nil {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()

	<-ctx.Done()
	return nil
}
