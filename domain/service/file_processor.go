package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// ProcessorOptions holds the per-file pipeline settings
type ProcessorOptions struct {
	OutputDirectory    string
	TriggerCommand     string
	DeleteAfterSuccess bool
}

// FileProcessor drains the EventQueue one event at a time: match, download,
// trigger, and optionally delete the remote copy. Any failure after matching
// stops the whole pipeline; there is no per-file retry.
type FileProcessor struct {
	directory outbound.RemoteFileDirectory
	trigger   outbound.TriggerRunner
	patterns  []*model.InterestPattern
	options   ProcessorOptions
	tracker   *StatusTracker
	logger    outbound.Logger
}

func NewFileProcessor(
	directory outbound.RemoteFileDirectory,
	trigger outbound.TriggerRunner,
	patterns []*model.InterestPattern,
	options ProcessorOptions,
	tracker *StatusTracker,
	logger outbound.Logger,
) *FileProcessor {
	return &FileProcessor{
		directory: directory,
		trigger:   trigger,
		patterns:  patterns,
		options:   options,
		tracker:   tracker,
		logger:    logger,
	}
}

// Run consumes the queue until it is completed, failed, or ctx is cancelled.
// It returns nil on completion or cancellation, the queue failure when the
// funnel failed it, and its own fatal error after failing the queue and
// calling cancel.
func (p *FileProcessor) Run(ctx context.Context, cancel context.CancelCauseFunc, queue *model.EventQueue) error {
	for {
		event, err := queue.Dequeue(ctx)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrQueueCompleted):
				p.logger.Info("Event queue completed, file processor stopping")
				return nil
			case queue.Err() != nil:
				return queue.Err()
			case ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}

		if err := p.Process(ctx, event); err != nil {
			if ctx.Err() != nil {
				// the pipeline is already stopping, err is a consequence of that
				if qerr := queue.Err(); qerr != nil {
					return qerr
				}
				p.logger.Info("File processing interrupted by cancellation", "path", event.FullPath())
				return nil
			}

			p.tracker.SetItemState(event.FullPath(), model.ItemFatalError)
			p.tracker.RecordFatal(err)
			queue.Fail(err)
			cancel(err)
			p.logger.Error("File processing failed", "path", event.FullPath(), "error", err)
			return err
		}
	}
}

// Process runs the per-file pipeline for one event
func (p *FileProcessor) Process(ctx context.Context, event *model.ChangeEvent) error {
	path := event.FullPath()

	p.tracker.SetItemState(path, model.ItemMatching)
	if !model.Matches(path, p.patterns) {
		p.tracker.RecordSkipped(path)
		p.logger.Debug("Skipping file not matching any interest pattern", "path", path)
		return nil
	}

	outputPath := filepath.Join(p.options.OutputDirectory, event.FileName())

	p.tracker.SetItemState(path, model.ItemDownloading)
	p.logger.Info("Downloading file", "path", path, "output", outputPath, "eventId", event.ID().String())
	if err := p.download(ctx, path, outputPath); err != nil {
		return err
	}

	p.tracker.SetItemState(path, model.ItemTriggering)
	p.logger.Info("Running trigger", "path", path, "output", outputPath)
	outcome, err := p.trigger.Execute(ctx, p.options.TriggerCommand, outputPath, &triggerLogSink{
		logger: p.logger,
		file:   outputPath,
	})
	if err != nil {
		return fmt.Errorf("%w: could not start trigger for %s: %v", model.ErrTriggerFailed, outputPath, err)
	}
	if !outcome.Succeeded {
		return &model.TriggerError{FilePath: outputPath, Outcome: outcome}
	}

	deleted := false
	if p.options.DeleteAfterSuccess {
		p.tracker.SetItemState(path, model.ItemCleaningUp)
		if err := p.directory.DeleteResource(ctx, event.FileName(), event.DirectoryName()); err != nil {
			return err
		}
		deleted = true
		p.logger.Info("Deleted remote file", "path", path)
	}

	p.tracker.RecordProcessed(path, deleted)
	p.logger.Info("Finished processing file", "path", path)
	return nil
}

// download writes chunks sequentially to outputPath, truncating any earlier copy
func (p *FileProcessor) download(ctx context.Context, remotePath, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}

	written := 0
	err = p.directory.DownloadFile(ctx, remotePath, func(chunk []byte) error {
		n, err := file.Write(chunk)
		written += n
		return err
	})

	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}

	p.logger.Debug("Download complete", "path", remotePath, "bytes", written)
	return nil
}

// triggerLogSink streams trigger output into the logger as it arrives
type triggerLogSink struct {
	logger outbound.Logger
	file   string
}

func (s *triggerLogSink) Stdout(line string) {
	s.logger.Info(line, "file", s.file, "stream", "stdout")
}

func (s *triggerLogSink) Stderr(line string) {
	s.logger.Error(line, "file", s.file, "stream", "stderr")
}
