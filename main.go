package main

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"relayer/cmd"
	"relayer/config"
	"relayer/db"
	"relayer/logger"
)

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(config.ConfigPath)

	if err := viper.MergeInConfig(); err != nil {
		logger.GlobalLogger.Warn("Error reading config.yaml file, using defaults and environment", "err", err)
	}

	if err := godotenv.Load(config.ConfigPath + ".env"); err != nil {
		logger.GlobalLogger.Warn("Error reading .env file, using process environment only", "err", err)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func initDB() {
	if !db.Enabled() {
		logger.GlobalLogger.Info("CLICKHOUSE_ADDR not set, audit log disabled")
		return
	}

	ch, err := db.NewClickhouse()
	if err != nil {
		logger.GlobalLogger.Error("Audit database unavailable", "err", err)
		return
	}
	defer ch.Close()

	logger.GlobalLogger.Info("Try to ensure database and tables exist")

	if err := ch.EnsureDatabaseExists(); err != nil {
		logger.GlobalLogger.Error("Failed to ensure database", "err", err)
		return
	}

	if err := ch.CreateTables(); err != nil {
		logger.GlobalLogger.Error("Failed to create tables", "err", err)
	}
}

func main() {
	initConfig()
	initDB()
	if err := cmd.RootCmd.Execute(); err != nil {
		logger.GlobalLogger.Error("Error executing command", "err", err)
	}

	logger.CloseAll()
}
