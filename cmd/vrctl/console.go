package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"go.uber.org/zap"

	"github.com/hipsterbrown/simplevr/internal/bridge"
	"github.com/hipsterbrown/simplevr/internal/config"
	"github.com/hipsterbrown/simplevr/simplevr"
)

// action runs one console command and returns the text to print.
type action func(ctx context.Context, args []string) (string, error)

type command struct {
	name    string
	aliases []string
	help    string
	run     action
}

// console binds driver operations to shell commands.
type console struct {
	drv *simplevr.Driver
	cfg *config.Config
	log *zap.Logger

	// dial opens the event publisher; replaced in tests.
	dial func(cfg config.MQTTConfig) (bridge.Publisher, string, func(), error)
}

func newConsole(drv *simplevr.Driver, cfg *config.Config, log *zap.Logger) *console {
	return &console{
		drv:  drv,
		cfg:  cfg,
		log:  log,
		dial: dialMQTT,
	}
}

func dialMQTT(cfg config.MQTTConfig) (bridge.Publisher, string, func(), error) {
	pub, topic, err := bridge.DialMQTT(cfg.URL, cfg.QoS, cfg.Timeout)
	if err != nil {
		return nil, "", nil, err
	}
	return pub, topic, pub.Close, nil
}

func (c *console) commands() []command {
	return []command{
		{name: "version", aliases: []string{"v"}, help: "query firmware and hardware version", run: c.version},
		{name: "state", aliases: []string{"s"}, help: "query work state, group and threshold", run: c.state},
		{name: "reset", help: "restore default settings", run: c.reset},
		{name: "enable", help: "turn recognition on", run: c.enable},
		{name: "disable", help: "turn recognition off", run: c.disable},
		{name: "group", aliases: []string{"g"}, help: "GROUP (1-64): select vocabulary group", run: c.group},
		{name: "threshold", aliases: []string{"t"}, help: "VALUE (0-255): set score threshold", run: c.threshold},
		{name: "startinfo", help: "on|off: power-up banner", run: c.startInfo},
		{name: "recognize", aliases: []string{"r"}, help: "[TIMEOUT]: wait for one recognition event", run: c.recognize},
		{name: "listen", aliases: []string{"l"}, help: "print recognition events until interrupted", run: c.listen},
	}
}

// Run executes args as a single command, or starts the interactive shell
// when args is empty and interactive is set.
func (c *console) Run(interactive bool, args ...string) error {
	shell := ishell.New()
	shell.SetPrompt("vr > ")
	for _, cmd := range c.commands() {
		shell.AddCmd(c.shellCmd(cmd))
	}

	if len(args) > 0 {
		return shell.Process(args...)
	}
	if !interactive {
		return errors.New("command expected")
	}
	shell.Run()
	return nil
}

func (c *console) shellCmd(cmd command) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    cmd.name,
		Aliases: cmd.aliases,
		Help:    cmd.help,
		Func: func(sc *ishell.Context) {
			out, err := cmd.run(context.Background(), sc.Args)
			if err != nil {
				sc.Err(err)
				return
			}
			if out != "" {
				sc.Println(out)
			}
		},
	}
}

func (c *console) version(ctx context.Context, _ []string) (string, error) {
	v, err := c.drv.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("firmware %s, hardware %s", v.Firmware(), v.Hardware()), nil
}

func (c *console) state(ctx context.Context, _ []string) (string, error) {
	st, err := c.drv.SystemState(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("work state %d, group %d, threshold %d", st.WorkState, st.Group, st.Threshold), nil
}

func (c *console) reset(ctx context.Context, _ []string) (string, error) {
	return ok(c.drv.Reset(ctx))
}

func (c *console) enable(ctx context.Context, _ []string) (string, error) {
	return ok(c.drv.Enable(ctx))
}

func (c *console) disable(ctx context.Context, _ []string) (string, error) {
	return ok(c.drv.Disable(ctx))
}

func (c *console) group(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: group GROUP")
	}
	group, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid group %q", args[0])
	}
	return ok(c.drv.SetGroup(ctx, group))
}

func (c *console) threshold(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: threshold VALUE")
	}
	value, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return "", fmt.Errorf("invalid threshold %q", args[0])
	}
	return ok(c.drv.SetThreshold(ctx, byte(value)))
}

func (c *console) startInfo(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: startinfo on|off")
	}
	on, err := parseSwitch(args[0])
	if err != nil {
		return "", err
	}
	return ok(c.drv.SetStartupInfo(ctx, on))
}

func (c *console) recognize(ctx context.Context, args []string) (string, error) {
	timeout := c.cfg.Driver.ListenTimeout
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid timeout %q", args[0])
		}
		timeout = d
	}

	r, err := c.drv.Recognize(ctx, timeout)
	if simplevr.IsTimeout(err) {
		return "no event", nil
	}
	if err != nil {
		return "", err
	}
	return formatRecognition(r), nil
}

func (c *console) listen(ctx context.Context, _ []string) (string, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	handle := func(r simplevr.Recognition) error {
		fmt.Println(formatRecognition(r))
		return nil
	}

	if c.cfg.MQTT.URL != "" {
		pub, topic, closePub, err := c.dial(c.cfg.MQTT)
		if err != nil {
			return "", err
		}
		defer closePub()

		br := bridge.New(pub, topic, c.log.Named("bridge"))
		show := handle
		handle = func(r simplevr.Recognition) error {
			if err := show(r); err != nil {
				return err
			}
			return br.Handle(r)
		}
	}

	err := c.drv.Listen(ctx, c.cfg.Driver.ListenTimeout, handle)
	if errors.Is(err, context.Canceled) {
		return "stopped", nil
	}
	return "", err
}

func ok(err error) (string, error) {
	if err != nil {
		return "", err
	}
	return "OK", nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func formatRecognition(r simplevr.Recognition) string {
	return fmt.Sprintf("sentence %d, group %d, score %d", r.Index, r.Group, r.Score)
}
