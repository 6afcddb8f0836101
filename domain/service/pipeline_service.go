package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/inbound"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

type pipelineService struct {
	funnel    *EventFunnel
	processor *FileProcessor
	tracker   *StatusTracker
	logger    outbound.Logger
}

func NewPipelineService(
	funnel *EventFunnel,
	processor *FileProcessor,
	tracker *StatusTracker,
	logger outbound.Logger,
) inbound.PipelineService {
	return &pipelineService{
		funnel:    funnel,
		processor: processor,
		tracker:   tracker,
		logger:    logger,
	}
}

// Run starts the funnel and the processor on one shared queue and one
// shared cancellation, then waits for both
func (s *pipelineService) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	queue := model.NewEventQueue()
	started := time.Now()

	s.logger.Info("Starting pipeline", "nodeId", s.tracker.Snapshot().NodeID)

	var g errgroup.Group
	g.Go(func() error {
		return s.funnel.Run(runCtx, cancel, queue)
	})
	g.Go(func() error {
		return s.processor.Run(runCtx, cancel, queue)
	})

	if err := g.Wait(); err != nil {
		s.tracker.RecordFatal(err)
		return err
	}

	status := s.tracker.Snapshot()
	s.logger.Info("Pipeline stopped",
		"uptime", time.Since(started).String(),
		"processed", status.Processed,
		"skipped", status.Skipped)
	return nil
}

func (s *pipelineService) Status() model.PipelineStatus {
	return s.tracker.Snapshot()
}

// AddListener exposes the tracker to status adapters
func (s *pipelineService) AddListener(listener inbound.StatusListener) {
	s.tracker.AddListener(listener)
}
