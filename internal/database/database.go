package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DBCloseCallback struct {
	client  *mongo.Client
	timeout time.Duration
}

func NewDBCloseCallback(client *mongo.Client, timeout time.Duration) *DBCloseCallback {
	return &DBCloseCallback{client: client, timeout: timeout}
}

func (dc *DBCloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	ctx, cancel := context.WithTimeout(ctx, dc.timeout)
	defer cancel()
	return dc.client.Disconnect(ctx)
}

func databaseURL(cfg config.DatabaseConfig) string {
	if cfg.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d/", cfg.Host, cfg.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
	)
}

// ConnectDatabase connects to MongoDB, verifies the connection and creates the indexes the store relies on.
func ConnectDatabase(cfg config.Config) (*mongo.Client, *mongo.Database, error) {
	logger.DebugF("Connecting to database...")
	dbCfg := cfg.Database

	clientOptions := options.Client().ApplyURI(databaseURL(dbCfg)).SetAppName(cfg.AppName)
	clientOptions.SetMinPoolSize(dbCfg.MinPoolSize)
	clientOptions.SetMaxPoolSize(dbCfg.MaxPoolSize)
	clientOptions.SetMaxConnIdleTime(utils.MustParseStringTime(dbCfg.ConnectIdleTimeout))
	clientOptions.SetConnectTimeout(utils.MustParseStringTime(dbCfg.ConnectTimeout))
	clientOptions.SetSocketTimeout(utils.MustParseStringTime(dbCfg.SocketTimeout))
	clientOptions.SetHeartbeatInterval(utils.MustParseStringTime(dbCfg.Heartbeat))
	if dbCfg.UseTLS {
		clientOptions.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %s #%d", evt.Address, evt.ConnectionID)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %s #%d (%s)", evt.Address, evt.ConnectionID, evt.Reason)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("error occured while connecting to database: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("error occured while pinging database: %w", err)
	}

	db := client.Database(dbCfg.Database)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	logger.InfoF("Connected to database %s at %s:%d", dbCfg.Database, dbCfg.Host, dbCfg.Port)
	return client, db, nil
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UserCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_username_unique"),
	})
	if err != nil {
		return fmt.Errorf("error occured while creating database indexes: %w", err)
	}
	_, err = db.Collection(LoginHistoryCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}, {Key: "login_time", Value: 1}},
		Options: options.Index().SetName("login_history_username"),
	})
	if err != nil {
		return fmt.Errorf("error occured while creating database indexes: %w", err)
	}
	return nil
}
