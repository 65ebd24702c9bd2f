package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/bridge"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/event"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/server"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/session"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/utils"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config path] [port] [tpc|reactor]\n", os.Args[0])
	flag.PrintDefaults()
}

// applyArgs overrides the listener settings with the positional arguments.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 2 {
		return errors.New("too many arguments")
	}
	if len(args) >= 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[0], err)
		}
		cfg.Server.Port = port
	}
	if len(args) == 2 {
		cfg.Server.Strategy = args[1]
	}
	return cfg.Validate()
}

// openStore returns the configured credential store and, for MongoDB, the hook
// that disconnects it.
func openStore(cfg config.Config) (database.CredentialStore, event.Callable, error) {
	if cfg.Store.Driver == config.DriverMemory {
		return database.NewMemoryStore(cfg.Store.BcryptCost), nil, nil
	}

	client, db, err := database.ConnectDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	timeout := utils.MustParseStringTime(cfg.Database.OperationTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := database.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	store := database.NewMongoStore(db, database.MongoOptions{
		BcryptCost:       cfg.Store.BcryptCost,
		CacheSize:        cfg.Store.CacheSize,
		CacheTTL:         utils.MustParseStringTime(cfg.Store.CacheTTL),
		OperationTimeout: timeout,
	})
	return store, database.NewDBCloseCallback(client, timeout), nil
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path of the configuration file")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		os.Exit(1)
	}
	if err := applyArgs(&cfg, flag.Args()); err != nil {
		usage()
		logger.FatalF("Error occured while parsing arguments %v", err)
		os.Exit(1)
	}

	loggerCallback := logger.Init(cfg.DebugMode, cfg.LogDir)
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)
	defer cleaner.Clean()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.FatalF("Error occured while initializing database, details: %v", err)
		return
	}

	registry := connection.NewRegistry()
	broker := protocol.NewBroker(registry, session.NewLogins(), store, protocol.Options{
		Version:    cfg.Stomp.Version,
		Host:       cfg.Stomp.Host,
		ServerName: cfg.AppName,
	})
	cleaner.Add(database.NewReportCallback(store, func(report string) { fmt.Println(report) }))

	if cfg.Redis.Enabled {
		relay := bridge.NewRedisBridge(cfg.Redis, registry)
		if err := relay.Start(); err != nil {
			logger.WarnF("Redis bridge unavailable, running standalone, details: %v", err)
			_ = relay.Stop()
		} else {
			broker.SetRelay(relay)
			cleaner.Add(relay)
		}
	}

	tcpServer := server.NewServer(cfg.Server, broker)
	cleaner.Add(tcpServer)

	if cfg.WebSocket.Enabled {
		wsServer := server.NewWebSocketServer(cfg.WebSocket, cfg.Server.Host, cfg.Server.MaxFrameSize, broker)
		cleaner.Add(wsServer)
		go func() {
			if err := wsServer.ListenAndServe(); err != nil {
				logger.ErrorF("WebSocket server stopped, details: %v", err)
			}
		}()
	}

	// The report reads from the store, so the database closes last.
	if closeStore != nil {
		cleaner.Add(closeStore)
	}

	if err := tcpServer.StartServer(); err != nil {
		logger.FatalF("Error occured while starting server, details: %v", err)
	}
}
