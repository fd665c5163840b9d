package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"snapzone/src/config"
	"snapzone/src/eventloop"
	"snapzone/src/logutil"
	"snapzone/src/notification"
	"snapzone/src/overlay"
	"snapzone/src/runtimeinit"
	"snapzone/src/scheduler"
	"snapzone/src/shell"
	"snapzone/src/singleinstance"
	"snapzone/src/status"
	"snapzone/src/tray"
)

type mainOptions struct {
	tray     bool
	duration int
	interval int
	dir      string
	envPath  string
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapzone",
		Short:         "Capture a screen region at fixed intervals",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.tray, "tray", false, "Start hidden in the system tray")
	cmd.Flags().IntVar(&opts.duration, "duration", 60, "Session duration in seconds (0 = unlimited)")
	cmd.Flags().IntVar(&opts.interval, "interval", 5, "Seconds between screenshots")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory that receives session folders")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to a .env file")
	return cmd
}

func main() {
	// Ensure DPI awareness before creating any windows or querying metrics
	enableDPIAwareness()

	opts := &mainOptions{}
	if err := newRootCmd(opts).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlags lets explicitly given flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *mainOptions) {
	flags := cmd.Flags()
	if flags.Changed("tray") {
		cfg.StartInTray = opts.tray
	}
	if flags.Changed("duration") {
		cfg.DurationSec = opts.duration
	}
	if flags.Changed("interval") {
		cfg.IntervalSec = opts.interval
	}
	if flags.Changed("dir") && opts.dir != "" {
		cfg.SaveDir = opts.dir
	}
}

// delegateToResident asks an already running instance to show its window.
// It reports whether a resident answered.
func delegateToResident(ctx context.Context, client singleinstance.Client) bool {
	delegated, _, err := client.Send(ctx, singleinstance.CmdShow)
	if err != nil {
		log.Printf("Resident found but SHOW failed: %v", err)
	}
	return delegated
}

// claimResident binds the control server. When another instance already
// holds the port it asks that instance to show its window and reports false.
func claimResident(ctx context.Context, srv singleinstance.Server, client singleinstance.Client) (bool, error) {
	err := srv.Start(ctx)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, singleinstance.ErrAlreadyResident) {
		return false, err
	}
	showCtx, cancelShow := context.WithTimeout(ctx, 2*time.Second)
	defer cancelShow()
	if !delegateToResident(showCtx, client) {
		return false, fmt.Errorf("resident port is taken but no SnapZone answered: %w", err)
	}
	return false, nil
}

func run(cmd *cobra.Command, opts *mainOptions) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:       config.LoadOptions{EnvPathOverride: opts.envPath},
		SetupLogging:      logutil.Setup,
		ShowBlockingError: true,
	})
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One resident per user session: the server bind is the lock.
	srv := singleinstance.NewServer()
	owned, err := claimResident(ctx, srv, singleinstance.NewClient())
	if err != nil {
		return err
	}
	if !owned {
		fmt.Println("SnapZone is already running; brought its window to the front.")
		return nil
	}
	defer srv.Close()

	a := app.NewWithID("io.snapzone.app")

	dispatcher := notification.NewDispatcher(notification.Desktop{App: a})
	defer dispatcher.Close()

	reporter := status.NewReporter(status.Options{
		Notifier:         dispatcher,
		NotifyOnComplete: cfg.NotifyOnComplete,
	})
	schedOpts := scheduler.Options{Observer: reporter}
	if cfg.NotifyOnShot {
		schedOpts.Notifier = dispatcher
	}
	sched := scheduler.New(schedOpts)

	var sh *shell.Shell
	trayIcon, err := tray.New(tray.Config{
		OnShow:        func() { sh.Show() },
		OnStart:       func() { sh.StartCapture() },
		OnTogglePause: func() { sh.TogglePause() },
		OnStop:        func() { sh.StopCapture() },
		OnCopyPath:    func() { sh.CopyPath() },
		OnExit:        func() { sh.Quit() },
	})
	if err != nil {
		return err
	}
	defer trayIcon.Close()

	sh = shell.New(shell.Options{
		App:       a,
		Scheduler: sched,
		Selector:  overlay.NewSelector(a),
		Reporter:  reporter,
		Settings:  shell.NewSettings(cfg.DurationSec, cfg.IntervalSec, cfg.SaveDir),
		Tray:      trayIcon,
		OnQuit:    cancel,
	})

	loop := eventloop.New(eventloop.Options{
		Scheduler: sched,
		Config:    sh.Config,
		OnShow:    sh.Show,
		Server:    srv,
	})
	if err := loop.StartHotkeys(cfg.PauseHotkey, cfg.StopHotkey); err != nil {
		reporter.Logf("Hotkeys disabled: %v", err)
	} else {
		log.Printf("Hotkeys: pause=%s stop=%s", cfg.PauseHotkey, cfg.StopHotkey)
	}
	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("event loop stopped: %v", err)
		}
	}()
	go sh.Run(ctx)

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			sh.Quit()
		case <-ctx.Done():
		}
	}()

	reporter.Log("SnapZone initialized and ready.")
	if cfg.StartInTray {
		trayIcon.Show()
		reporter.Log("Started in system tray.")
	} else {
		sh.Window().Show()
	}
	a.Run()

	shutdown(sched)
	return nil
}

// shutdown stops an active session and waits briefly for its last shot.
func shutdown(sched *scheduler.Scheduler) {
	sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sched.Wait(ctx); err != nil {
		log.Printf("capture loop did not finish before exit: %v", err)
	}
}
