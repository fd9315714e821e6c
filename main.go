package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"devtracker-bot/api"
	"devtracker-bot/bot"
	"devtracker-bot/command"
	"devtracker-bot/config"
	"devtracker-bot/database"
	"devtracker-bot/grpc"
	"devtracker-bot/handlers"
	"devtracker-bot/status"
	"devtracker-bot/tracker"
	"devtracker-bot/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	healthcheck := pflag.Bool("healthcheck", false, "query the gRPC health endpoint of a running bot and exit")
	pflag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *healthcheck {
		os.Exit(probe(cfg.Status.GRPCAddr))
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func probe(addr string) int {
	if addr == "" {
		fmt.Fprintln(os.Stderr, "status.grpc_addr is not set")
		return 1
	}
	if err := grpc.Probe(context.Background(), addr, grpc.ServiceName, 5*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("SERVING")
	return 0
}

func run(cfg *config.Config) error {
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	log := logrus.NewEntry(logger)

	session, err := bot.NewSession(cfg.Bot.Token)
	if err != nil {
		return err
	}
	if cfg.Bot.AdminChannelID != "" {
		hook := utils.NewAdminChannelHook(session, cfg.Bot.AdminChannelID)
		logger.AddHook(hook)
		defer hook.Close()
	}

	db, err := database.Open(cfg.Database.Path, log.WithField("module", "database"))
	if err != nil {
		return err
	}
	defer db.Close()

	client := api.NewClient(api.Config{
		BaseURL:           cfg.API.BaseURL,
		Token:             cfg.API.Token,
		Timeout:           cfg.API.Timeout,
		PostsTimeout:      cfg.API.PostsTimeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	}, log.WithField("module", "api"))

	catalog := tracker.NewCatalog(client, db, log.WithField("module", "catalog"))
	transport := tracker.NewDiscordTransport(session, log.WithField("module", "transport"))
	trk := tracker.New(client, db, transport, catalog, tracker.Config{
		FetchConcurrency: cfg.Tracker.FetchConcurrency,
		SendConcurrency:  cfg.Tracker.SendConcurrency,
		FetchTimeout:     cfg.API.PostsTimeout,
	}, log.WithField("module", "tracker"))

	var setters []status.HealthSetter
	if cfg.Status.GRPCAddr != "" {
		health := grpc.NewHealthServer(cfg.Status.GRPCAddr, log.WithField("module", "grpc"))
		if err := health.Start(); err != nil {
			return err
		}
		defer health.Stop()
		setters = append(setters, health)
	}
	monitor := status.NewMonitor(setters...)

	if cfg.Status.HTTPAddr != "" {
		srv := status.NewServer(cfg.Status.HTTPAddr, cfg.Status.GinMode, monitor, db, log.WithField("module", "status"))
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	b := bot.NewBot(session, &bot.Services{
		Config:    cfg,
		DB:        db,
		API:       client,
		Catalog:   catalog,
		Tracker:   trk,
		Transport: transport,
		Monitor:   monitor,
		Auth:      utils.NewAuth(cfg.Bot.Developers),
		Log:       log.WithField("module", "bot"),
	})
	return bot.Run(b, handlers.Register, command.AllCommands)
}
