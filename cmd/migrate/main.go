package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fikanetics/raidxp/raidxp"
	"github.com/fikanetics/raidxp/raidxp/database"
	"github.com/fikanetics/raidxp/raidxp/logger"
	"github.com/fikanetics/raidxp/raidxp/migration"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	path := flag.String("config", "config.toml", "path to config")
	mongoURI := flag.String("mongo-uri", "", "legacy MongoDB URI (overrides config)")
	mongoDB := flag.String("mongo-db", "", "legacy MongoDB database name (overrides config)")
	batchSize := flag.Int("batch-size", 1000, "insert batch size")
	flag.Parse()

	cfg, err := raidxp.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	uri := cfg.Legacy.MongoURI
	if *mongoURI != "" {
		uri = *mongoURI
	}
	dbName := cfg.Legacy.MongoDatabase
	if *mongoDB != "" {
		dbName = *mongoDB
	}
	if uri == "" || dbName == "" {
		slog.Error("Legacy MongoDB not configured: set [legacy] mongo_uri and mongo_database, or pass -mongo-uri/-mongo-db")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		slog.Error("Failed to connect to legacy MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Disconnect(ctx)
	}()

	migrator := migration.NewMigrator(db.BunDB())
	migrator.UseMongo(client, dbName)
	migrator.SetBatchSize(*batchSize)
	migrator.SetMongoCollectionName("players", cfg.Legacy.PlayersCollection)
	migrator.SetMongoCollectionName("stats", cfg.Legacy.StatsCollection)

	if err := migrator.MigrateAllFromMongo(ctx); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Migration completed successfully!")
}
