package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-urjog/internal/config"
	"github.com/teslashibe/go-urjog/internal/log"
	"github.com/teslashibe/go-urjog/pkg/controller"
	"github.com/teslashibe/go-urjog/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	host := flag.String("robot", "", "Robot IP address (overrides config)")
	simulate := flag.Bool("simulate", false, "Run without a robot connection")
	webPort := flag.String("web-port", "", "Event bridge port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Robot.Host = *host
	}
	if *simulate {
		cfg.Simulation = true
	}
	if *webPort != "" {
		cfg.Web.Port = *webPort
	}

	log.Init(cfg.LogLevel)
	log.Info("starting urjog",
		"robot", cfg.Robot.Host,
		"simulation", cfg.Simulation,
		"web", cfg.Web.Enabled)

	ctrl, err := controller.New(cfg)
	if err != nil {
		log.Error("failed to build controller", "error", err)
		os.Exit(1)
	}
	if err := ctrl.Connect(); err != nil {
		log.Error("failed to connect to robot", "error", err)
		os.Exit(1)
	}
	defer ctrl.Disconnect()

	var bridge *web.Server
	if cfg.Web.Enabled {
		bridge = web.NewServer(cfg.Web.Port, ctrl)
		bridge.StartAsync()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	if bridge != nil {
		if err := bridge.Shutdown(); err != nil {
			log.Error("web shutdown error", "error", err)
		}
	}
}
