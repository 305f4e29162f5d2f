package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/data/store"
	"github.com/akolanti/JournalRAG/internal/domain/jobModel"
	"github.com/akolanti/JournalRAG/internal/handlers"
	"github.com/akolanti/JournalRAG/internal/job"
	"github.com/akolanti/JournalRAG/internal/server"
	"github.com/akolanti/JournalRAG/internal/worker"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the ingest worker pool",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen-addr", "", "server listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := logger_i.NewLogger("main")
	if listenAddr == "" {
		listenAddr = settings.ListenAddr
	}

	//init buffered job channel
	jobChannel := make(chan jobModel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel := make(chan bool, 1)
	var workerWaitGroup sync.WaitGroup

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	rt, err := buildRuntime(serviceContext, settings)
	if err != nil {
		logger.Error("External services failed to initialize", "error", err)
		return err
	}
	defer rt.close()

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
	}
	if redisJobs := store.GetRedisJobStore(serviceContext, settings.Redis.Addr, settings.Redis.Password); redisJobs != nil {
		serviceConfig.JobStore = redisJobs
	} else if config.FALLBACK_REDIS_TO_INTERNALSTORE {
		logger.Error("Redis job store is offline, falling back to memory")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
	} else {
		return errRedisOffline
	}
	logger.Info("Starting job service")
	jobService := job.InitJobService(serviceConfig)

	handlers.InitJobHandler(jobService)
	handlers.InitRagHandler(rt.service)

	//init worker pool
	worker.InitServices(jobService, rt.service)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
	return nil
}
