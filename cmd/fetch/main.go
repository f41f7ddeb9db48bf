package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"stocktool/cmd/fetch/command"
	"stocktool/internal/config"
	"stocktool/internal/logging"
)

func main() {
	_ = godotenv.Load()

	logCfg := config.Default().Log
	logCfg.Development = true
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logCfg.Level = lvl
	}
	undo, err := logging.Setup(logCfg)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer undo()

	app := &cli.Command{
		Name:  "fetch",
		Usage: "fetch stock quotes and prewarm the shell cache from the command line",
	}
	for _, c := range command.Commands {
		app.Commands = append(app.Commands, c.Command())
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		zap.L().Fatal(err.Error())
	}
}
