package singleinstance

// This file defines the API for single-instance ownership and command delegation.

import (
	"context"
	"fmt"
	"strings"
)

// Command is one control request sent to the resident instance.
type Command string

const (
	CmdStart  Command = "START"
	CmdPause  Command = "PAUSE"
	CmdResume Command = "RESUME"
	CmdStop   Command = "STOP"
	CmdStatus Command = "STATUS"
	CmdShow   Command = "SHOW"
)

var commands = []Command{CmdStart, CmdPause, CmdResume, CmdStop, CmdStatus, CmdShow}

// ParseCommand accepts a command name in any case.
func ParseCommand(s string) (Command, error) {
	c := Command(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range commands {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// Server owns the TCP endpoint and answers control requests.
type Server interface {
	// Start binds the first port of the configured range or fails with ErrAlreadyResident.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	Request() Request
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request represents a single control request.
type Request struct {
	Command Command
}

// Client delegates commands to a resident server.
type Client interface {
	// Send scans the port range, performs the PING handshake and sends cmd.
	// If no resident is found, returns delegated=false, err=nil.
	Send(ctx context.Context, cmd Command) (delegated bool, text string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
