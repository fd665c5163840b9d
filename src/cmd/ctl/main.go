package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snapzone/src/config"
	"snapzone/src/singleinstance"
)

// ErrNoResident is returned when no SnapZone instance answers.
var ErrNoResident = errors.New("SnapZone is not running")

type ctlOptions struct {
	jsonOutput bool
	verbose    bool
	timeout    time.Duration
	envPath    string
}

// deps are swapped out in tests.
type deps struct {
	client singleinstance.Client
	detect func(ctx context.Context) (int, bool)
	out    io.Writer
}

// Result is the --json output.
type Result struct {
	Command   string `json:"command"`
	OK        bool   `json:"ok"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Port      int    `json:"port,omitempty"`
	Timestamp string `json:"timestamp"`
}

func main() {
	d := deps{
		client: singleinstance.NewClient(),
		detect: singleinstance.DetectResidentPort,
		out:    os.Stdout,
	}
	if err := runWithArgs(os.Args[1:], d); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string, d deps) error {
	opts := &ctlOptions{}
	cmd := newRootCmd(opts, d)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCmd(opts *ctlOptions, d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "snapzonectl",
		Short:         "Control a running SnapZone instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.verbose {
				log.SetOutput(io.Discard)
			} else {
				log.SetOutput(os.Stderr)
			}
			// .env may move the control port range
			_, err := config.LoadWithOptions(config.LoadOptions{EnvPathOverride: opts.envPath})
			return err
		},
	}
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "How long to wait for the resident")
	root.PersistentFlags().StringVar(&opts.envPath, "env", "", "Path to a .env file")

	commands := []struct {
		cmd   singleinstance.Command
		short string
	}{
		{singleinstance.CmdStart, "Start capturing with the window's current settings"},
		{singleinstance.CmdPause, "Pause the running session"},
		{singleinstance.CmdResume, "Resume a paused session"},
		{singleinstance.CmdStop, "Stop the session"},
		{singleinstance.CmdStatus, "Print the session status"},
		{singleinstance.CmdShow, "Show the settings window"},
	}
	for _, c := range commands {
		c := c
		root.AddCommand(&cobra.Command{
			Use:   strings.ToLower(string(c.cmd)),
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(cmd.Context(), *opts, d, c.cmd)
			},
		})
	}
	root.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check whether SnapZone is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ping(cmd.Context(), *opts, d)
		},
	})
	return root
}

func send(parent context.Context, opts ctlOptions, d deps, c singleinstance.Command) error {
	ctx, cancel := withTimeout(parent, opts.timeout)
	defer cancel()

	log.Printf("sending %s", c)
	delegated, text, err := d.client.Send(ctx, c)
	if !delegated && err == nil {
		err = ErrNoResident
	}
	res := Result{Command: strings.ToLower(string(c)), OK: err == nil, Text: strings.TrimRight(text, "\n")}
	if err != nil {
		res.Error = err.Error()
	}
	if werr := write(d.out, opts.jsonOutput, res); werr != nil {
		return werr
	}
	return err
}

func ping(parent context.Context, opts ctlOptions, d deps) error {
	ctx, cancel := withTimeout(parent, opts.timeout)
	defer cancel()

	port, ok := d.detect(ctx)
	res := Result{Command: "ping", OK: ok, Port: port}
	var err error
	if ok {
		res.Text = fmt.Sprintf("SnapZone is running on 127.0.0.1:%d", port)
	} else {
		err = ErrNoResident
		res.Error = err.Error()
	}
	if werr := write(d.out, opts.jsonOutput, res); werr != nil {
		return werr
	}
	return err
}

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

func write(w io.Writer, jsonOutput bool, res Result) error {
	res.Timestamp = time.Now().Format(time.RFC3339)
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if res.OK && res.Text != "" {
		_, err := fmt.Fprintln(w, res.Text)
		return err
	}
	return nil
}
