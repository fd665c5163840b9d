package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"snapzone/src/singleinstance"
)

type stressOptions struct {
	n        int
	command  string
	deadline time.Duration
}

type counts struct {
	ok, notResident, failed int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	return newRootCmd(opts, singleinstance.NewClient).Execute()
}

func newRootCmd(opts *stressOptions, newClient func() singleinstance.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapzone-stress",
		Short:         "Fire concurrent control requests at the resident SnapZone",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := runWithOptions(*opts, newClient)
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), opts.n, c)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of concurrent clients")
	cmd.Flags().StringVar(&opts.command, "command", "status", "control command each client sends")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func runWithOptions(opts stressOptions, newClient func() singleinstance.Client) (*counts, error) {
	command, err := singleinstance.ParseCommand(opts.command)
	if err != nil {
		return nil, err
	}
	if opts.n <= 0 {
		return nil, fmt.Errorf("--n must be positive, got %d", opts.n)
	}

	c := &counts{}
	var wg sync.WaitGroup
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, _, err := newClient().Send(ctx, command)
			switch {
			case err != nil:
				atomic.AddInt32(&c.failed, 1)
			case !delegated:
				atomic.AddInt32(&c.notResident, 1)
			default:
				atomic.AddInt32(&c.ok, 1)
			}
		}()
	}
	wg.Wait()
	return c, nil
}

func report(w io.Writer, n int, c *counts) {
	fmt.Fprintf(w, "launched=%d ok=%d no-resident=%d err=%d\n",
		n, atomic.LoadInt32(&c.ok), atomic.LoadInt32(&c.notResident), atomic.LoadInt32(&c.failed))
}
