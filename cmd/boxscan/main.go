package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"boxscan/internal/assign"
	"boxscan/internal/config"
	"boxscan/internal/console"
	"boxscan/internal/label"
	"boxscan/internal/labelprint"
	"boxscan/internal/printer"
	"boxscan/internal/resolve"
	"boxscan/internal/scanbuf"
	"boxscan/internal/session"
	"boxscan/internal/vipapi"
	"boxscan/internal/workflow"
	"boxscan/internal/workflowlog"
)

type flags struct {
	envPath      string
	tomlPath     string
	screen       string
	serialScreen string
	headless     bool
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.envPath, "env", ".env", "dotenv file")
	flag.StringVar(&f.tomlPath, "config", "boxscan.toml", "optional TOML config file")
	flag.StringVar(&f.screen, "screen", "box", "start screen: box or label")
	flag.StringVar(&f.serialScreen, "serial-screen", "box", "screen fed by the serial scanner: box or label")
	flag.BoolVar(&f.headless, "headless", false, "no terminal UI; stdin feeds the start screen")
	flag.Parse()
	return f
}

type app struct {
	cfg      config.Config
	store    session.Store
	api      *vipapi.Client
	resolver *resolve.Resolver
	box      *workflow.BoxScreen
	label    *workflow.LabelScreen
	printer  *labelprint.Service
	logs     *workflowlog.Manager
}

func main() {
	f := parseFlags()
	if f.screen != "box" && f.screen != "label" {
		exitErr(fmt.Errorf("screen noma'lum: %q", f.screen))
	}

	cfg, err := config.Load(f.envPath, f.tomlPath)
	if err != nil {
		exitErr(fmt.Errorf("config load error: %w", err))
	}

	var logs *workflowlog.Manager
	if strings.TrimSpace(cfg.LogDir) != "" {
		logs, err = workflowlog.NewAt(cfg.LogDir, "boxscan")
	} else {
		logs, err = workflowlog.New("boxscan")
	}
	if err != nil {
		exitErr(fmt.Errorf("workflow logger init error: %w", err))
	}
	defer logs.Close()

	tui := !f.headless && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if tui {
		logs.Quiet()
	}
	logger := logs.Logger("main")
	logger.Printf("workflow logs dir: %s", logs.Dir())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logs)
	if err != nil {
		logger.Printf("startup error: %v", err)
		exitErr(err)
	}
	defer a.store.Close()

	if strings.TrimSpace(cfg.ConsoleAddr) != "" {
		srv := console.New(a.box, a.label, a.store, a.resolver, logs.Logger("worker.console"))
		go func() {
			if err := srv.Run(ctx, cfg.ConsoleAddr); err != nil {
				logger.Printf("console stopped: %v", err)
			}
		}()
	}

	if dev := strings.TrimSpace(cfg.ScannerDevice); dev != "" {
		buf := a.box.Input()
		if f.serialScreen == "label" {
			buf = a.label.Input()
		}
		go scanbuf.RunSerial(ctx, dev, cfg.ScannerBaud, buf, logs.Logger("worker.serial"))
	}

	if tui {
		err = runTUI(ctx, a, f.screen)
	} else {
		err = runHeadless(ctx, a, f.screen, logger)
	}
	if err != nil {
		logger.Printf("run error: %v", err)
		exitErr(err)
	}
}

func build(ctx context.Context, cfg config.Config, logs *workflowlog.Manager) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := session.Open(cfg.StateBackend, cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	apiLog := logs.Logger("worker.api")
	api := vipapi.New(cfg.APIURL, cfg.APIToken, cfg.APITimeout)
	api.SetLogger(apiLog)
	api.OnUnauthorized(func() { apiLog.Printf("unauthorized: token rejected by server") })
	if cfg.APIUsername != "" && cfg.APIPassword != "" {
		loginCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
		err := api.Login(loginCtx, cfg.APIUsername, cfg.APIPassword)
		cancel()
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("login: %w", err)
		}
	}

	transport := printer.NewTransport(printer.Options{
		DialTimeout:  cfg.PrinterDialTimeout,
		WriteTimeout: cfg.PrinterWriteTimeout,
		DrainTimeout: cfg.PrinterDrainTimeout,
	}, logs.Logger("worker.printer"))
	svc := labelprint.New(
		label.NewClient(api, logs.Logger("worker.label")),
		transport,
		store,
		logs.Logger("worker.labelprint"),
	).WithOverride(cfg.PrinterHost, cfg.PrinterPort).
		WithLockDir(filepath.Join(filepath.Dir(cfg.StatePath), "locks"))

	resolver := resolve.New(api, logs.Logger("worker.resolve"))
	deps := workflow.Deps{
		Resolver: resolver,
		Assign:   assign.New(api, logs.Logger("worker.assign")),
		Session:  store,
		Log:      logs.Logger("worker.workflow"),
		Quiet:    cfg.ScanQuiet,
	}
	return &app{
		cfg:      cfg,
		store:    store,
		api:      api,
		resolver: resolver,
		box:      workflow.NewBoxScreen(ctx, deps),
		label:    workflow.NewLabelScreen(ctx, deps, svc),
		printer:  svc,
		logs:     logs,
	}, nil
}

// runHeadless feeds stdin into one screen and prints notices. There are no
// prompts: a found box is opened at once and the label screen prints with
// the server's dimensions. Finish goes through the console.
func runHeadless(ctx context.Context, a *app, screen string, logger *log.Logger) error {
	show := func(n workflow.Notice) {
		fmt.Printf("%s [%s] %s\n", n.At.Format("15:04:05"), strings.ToUpper(n.Level.String()), n.Text)
	}
	a.box.OnNotice(show)
	a.label.OnNotice(show)

	buf := a.box.Input()
	if screen == "label" {
		buf = a.label.Input()
		a.label.OnChange(func() {
			if a.label.View().Phase != workflow.PhaseForm {
				return
			}
			go func() {
				_, err := a.label.Submit()
				var ve *label.ValidationError
				if errors.As(err, &ve) {
					a.label.Cancel()
				}
			}()
		})
	} else {
		a.box.OnChange(func() {
			if a.box.View().Phase == workflow.PhaseConfirm {
				_ = a.box.StartScanning()
			}
		})
		if err := a.box.Restore(); err != nil {
			logger.Printf("restore failed: %v", err)
		}
	}

	// One line is one scan; stdin reads do not notice ctx, so wait on both.
	fed := make(chan error, 1)
	go func() { fed <- scanbuf.FeedLines(ctx, os.Stdin, buf) }()
	select {
	case err := <-fed:
		if err != nil {
			return err
		}
		<-ctx.Done()
	case <-ctx.Done():
	}
	return nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
