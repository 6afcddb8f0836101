package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	grpcadapter "github.com/ajkula/notifytrigger/adapter/inbound/grpc"
	"github.com/ajkula/notifytrigger/adapter/inbound/rest"
	"github.com/ajkula/notifytrigger/adapter/outbound/fileserver"
	"github.com/ajkula/notifytrigger/adapter/outbound/filewatcher"
	"github.com/ajkula/notifytrigger/adapter/outbound/logging"
	"github.com/ajkula/notifytrigger/adapter/outbound/machineid"
	"github.com/ajkula/notifytrigger/adapter/outbound/notification"
	"github.com/ajkula/notifytrigger/adapter/outbound/trigger"
	"github.com/ajkula/notifytrigger/config"
	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/inbound"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
	"github.com/ajkula/notifytrigger/domain/service"
)

// runPipeline loads the configuration, wires the adapters and blocks until the
// pipeline stops. A nil return means a clean stop.
func runPipeline(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.General.NodeID == "" {
		cfg.General.NodeID = defaultNodeID()
	}

	logger := logging.NewSlogAdapter(cfg)
	defer logger.Shutdown()

	logger.Info("Starting notifytrigger",
		"version", Version,
		"transport", cfg.NotificationServer.Transport,
		"fileServer", cfg.FileServer.Kind,
		"watchDirectories", cfg.Pipeline.WatchDirectories)

	if err := os.MkdirAll(cfg.Pipeline.OutputDirectory, 0755); err != nil {
		logger.Error("Failed to create output directory", "path", cfg.Pipeline.OutputDirectory, "error", err)
		return fmt.Errorf("%w: creating output directory: %v", model.ErrConfiguration, err)
	}

	pipeline, tracker, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		return err
	}

	if cfg.HTTP.Enabled {
		server, err := rest.NewServer(cfg, rest.NewHandler(pipeline, cfg, Version, logger), logger)
		if err != nil {
			logger.Error("Failed to start HTTP server", "error", err)
			return err
		}
		server.Start()
		defer server.Stop(context.Background())
	}

	if cfg.GRPC.Enabled {
		grpcServer := grpcadapter.NewServer(tracker, logger)
		grpcAddr := net.JoinHostPort(cfg.GRPC.Address, strconv.Itoa(cfg.GRPC.Port))
		if err := grpcServer.Start(grpcAddr); err != nil {
			logger.Error("Failed to start gRPC server", "error", err)
			return err
		}
		defer grpcServer.Stop()
	}

	if cfg.General.WatchConfig {
		fsWatcher, err := filewatcher.NewFSWatcher(filewatcher.DefaultDebounce)
		if err != nil {
			logger.Error("Failed to create config watcher", "error", err)
			return err
		}
		watcher := service.NewConfigWatcherService(fsWatcher, logger, config.LoadLogLevel, cfg.Logging.Level, logger)
		if err := watcher.Start(ctx, configPath); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if err := pipeline.Run(ctx); err != nil {
		logger.Error("Pipeline stopped on a fatal error", "error", err, "fatal", true)
		return err
	}

	logger.Info("notifytrigger stopped")
	return nil
}

// buildPipeline creates the remote directory, the notification source, and the services
func buildPipeline(cfg *config.Config, logger outbound.Logger) (inbound.PipelineService, *service.StatusTracker, error) {
	patterns, err := cfg.CompilePatterns()
	if err != nil {
		return nil, nil, err
	}

	directory, err := newRemoteDirectory(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	source, err := newNotificationSource(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	tracker := service.NewStatusTracker(cfg.General.NodeID)

	funnel := service.NewEventFunnel(
		directory,
		source,
		patterns,
		cfg.Pipeline.WatchDirectories,
		tracker,
		logger,
	)

	processor := service.NewFileProcessor(
		directory,
		trigger.NewShellTrigger(logger),
		patterns,
		service.ProcessorOptions{
			OutputDirectory:    cfg.Pipeline.OutputDirectory,
			TriggerCommand:     cfg.Pipeline.TriggerCommand,
			DeleteAfterSuccess: cfg.Pipeline.DeleteAfterSuccess,
		},
		tracker,
		logger,
	)

	return service.NewPipelineService(funnel, processor, tracker, logger), tracker, nil
}

func newRemoteDirectory(cfg *config.Config, logger outbound.Logger) (outbound.RemoteFileDirectory, error) {
	switch strings.ToLower(cfg.FileServer.Kind) {
	case config.FileServerHTTP:
		return fileserver.NewHTTPFileServer(
			cfg.FileServer.URI,
			cfg.FileServer.Username,
			cfg.FileServer.Password,
			cfg.Pipeline.ChunkSize,
			logger,
		)
	case config.FileServerS3:
		return fileserver.NewS3Directory(fileserver.S3Config{
			Bucket:         cfg.FileServer.S3.Bucket,
			Region:         cfg.FileServer.S3.Region,
			Endpoint:       cfg.FileServer.S3.Endpoint,
			AccessKey:      cfg.FileServer.S3.AccessKey,
			SecretKey:      cfg.FileServer.S3.SecretKey,
			ForcePathStyle: cfg.FileServer.S3.ForcePathStyle,
		}, cfg.Pipeline.ChunkSize, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported file server kind %q", model.ErrConfiguration, cfg.FileServer.Kind)
	}
}

func newNotificationSource(cfg *config.Config, logger outbound.Logger) (outbound.NotificationSource, error) {
	ns := cfg.NotificationServer
	switch strings.ToLower(ns.Transport) {
	case config.TransportTCP:
		return notification.NewTCPSource(ns.Domain, ns.Port, logger), nil
	case config.TransportWebSocket:
		return notification.NewWebSocketSource(ns.URL, nil, logger), nil
	case config.TransportAMQP:
		return notification.NewAMQPSource(ns.AMQP.URI, ns.AMQP.Queue, "notifytrigger-"+cfg.General.NodeID, logger), nil
	default:
		return nil, fmt.Errorf("%w: unsupported notification transport %q", model.ErrConfiguration, ns.Transport)
	}
}

// defaultNodeID derives a stable id from the machine id, falling back to the hostname
func defaultNodeID() string {
	if id, err := machineid.NewHardwareMachineID(12).GetMachineID(); err == nil {
		return "node-" + id
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "node"
}
