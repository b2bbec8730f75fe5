// Command vrctl talks to a SimpleVR module over a serial port.
package main

import (
	"flag"
	"log"

	"github.com/hipsterbrown/simplevr/internal/config"
	"github.com/hipsterbrown/simplevr/internal/logging"
	"github.com/hipsterbrown/simplevr/simplevr"
	"github.com/hipsterbrown/simplevr/transports"
)

var (
	configPath string
	evalOnly   bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML/TOML/JSON config file.")
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	transport, err := transports.OpenSerial(transports.SerialConfig{
		Port:         cfg.Serial.Port,
		BaudRate:     cfg.Serial.BaudRate,
		PollInterval: cfg.Serial.PollInterval,
	})
	if err != nil {
		log.Fatalf("open %s: %v", cfg.Serial.Port, err)
	}

	drv, err := simplevr.NewDriver(simplevr.DriverConfig{
		Transport: transport,
		Timeout:   cfg.Driver.Timeout,
		Logger:    logger.Named("simplevr"),
	})
	if err != nil {
		log.Fatalf("create driver: %v", err)
	}
	defer drv.Close()

	con := newConsole(drv, cfg, logger)
	if err := con.Run(!evalOnly, flag.Args()...); err != nil {
		log.Fatalln(err)
	}
}
