package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"payouts/internal/amqp"
	"payouts/internal/cli"
	"payouts/internal/config"
	"payouts/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	appCfg := config.Load()
	if appCfg.AMQPURL == "" {
		exitf("AMQP_URL is required")
	}

	pubCfg, err := cli.ParsePublishConfig(flag.CommandLine, os.Args[1:], appCfg.ApprovalEmoji)
	if err != nil {
		exitf("parse flags: %v", err)
	}
	msg, err := pubCfg.Reaction(time.Now())
	if err != nil {
		exitf("build reaction: %v", err)
	}

	client, err := amqp.NewClient(appCfg.AMQPURL, appCfg.AMQPExchange, appCfg.AMQPQueue)
	if err != nil {
		exitf("connect: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.PublishReaction(ctx, msg); err != nil {
		client.Close()
		exitf("publish: %v", err)
	}
	logger.Info("Reaction published", log.FieldMessageID, msg.MessageID, "queue", appCfg.AMQPQueue)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
