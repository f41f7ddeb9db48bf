package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"stocktool/internal/aggregate"
	"stocktool/internal/config"
	"stocktool/internal/logging"
	"stocktool/internal/provider/factory"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	undo, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer undo()

	p, err := factory.NewFromConfig(cfg.Quotes)
	if err != nil {
		zap.L().Fatal("build provider failed", zap.Error(err))
	}
	// A missing credential is reported per invocation as a 500, not here.
	h := NewHandler(aggregate.New(cfg.Quotes, p), cfg.Server.RequestTimeout())
	lambda.Start(h.Handle)
}
