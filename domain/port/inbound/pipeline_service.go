package inbound

import (
	"context"

	"github.com/ajkula/notifytrigger/domain/model"
)

// PipelineService runs the notification to trigger pipeline
type PipelineService interface {
	// Run blocks until the pipeline stops. It returns nil on cancellation of ctx
	// and the first fatal error otherwise.
	Run(ctx context.Context) error

	// Status returns a snapshot of the pipeline
	Status() model.PipelineStatus
}

// StatusListener is notified after every pipeline state change
type StatusListener func(status model.PipelineStatus)

// StatusPublisher lets adapters follow pipeline state changes
type StatusPublisher interface {
	AddListener(listener StatusListener)
}

// ConfigWatcherService reloads the log level when the configuration file changes
type ConfigWatcherService interface {
	Start(ctx context.Context, configPath string) error
	Stop() error
}
