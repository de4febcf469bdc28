// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Program farcall is a command-line client for the execution service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/remote"
	"github.com/farcall/farcall/wire"
)

var gopts struct {
	Addr    string        `flag:"addr,default=127.0.0.1:50051,Service address"`
	Timeout time.Duration `flag:"timeout,default=30s,Call timeout"`
	Debug   bool          `flag:"debug,Enable verbose logging"`
}

func main() {
	root := &command.C{
		Name:     filepath.Base(os.Args[0]),
		Help:     "A client for the farcall execution service.",
		SetFlags: command.Flags(flax.MustBind, &gopts),
		Commands: []*command.C{
			{
				Name:  "call",
				Usage: "<module.function> [arg...]",
				Help: `Execute a registered target on the service.

Each argument is decoded as JSON if possible, otherwise passed as a string.
Arguments of the form name=value become keyword arguments.`,
				Run: runCall,
			},
			{
				Name:  "ping",
				Usage: "[message]",
				Help:  "Probe service connectivity and report latency.",
				Run:   runPing,
			},
			{
				Name:     "health",
				Help:     "Report the service health snapshot.",
				SetFlags: command.Flags(flax.MustBind, &healthOpts),
				Run:      runHealth,
			},
			{
				Name:     "status",
				Help:     "Report service counters and registered targets.",
				SetFlags: command.Flags(flax.MustBind, &statusOpts),
				Run:      runStatus,
			},
			{
				Name:     "read",
				Usage:    "<path>",
				Help:     "Read a file from the service host and write it to stdout.",
				SetFlags: command.Flags(flax.MustBind, &readOpts),
				Run:      runRead,
			},
			{
				Name:     "write",
				Usage:    "<path>",
				Help:     "Write stdin to a file on the service host.",
				SetFlags: command.Flags(flax.MustBind, &writeOpts),
				Run:      runWrite,
			},
			{
				Name:     "ls",
				Usage:    "<path>",
				Help:     "List a directory on the service host.",
				SetFlags: command.Flags(flax.MustBind, &lsOpts),
				Run:      runList,
			},
			{
				Name:     "exec",
				Usage:    "<command> [arg...]",
				Help:     "Run a program on the service host.",
				SetFlags: command.Flags(flax.MustBind, &execOpts),
				Run:      runExec,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

// newClient dials the configured service address. The caller must close the
// returned client.
func newClient() (*remote.Client, context.Context, context.CancelFunc) {
	level := zerolog.WarnLevel
	if gopts.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	c := remote.NewClient(gopts.Addr, remote.ClientOptions{
		CallTimeout: gopts.Timeout,
		Logger:      log,
		Debug:       gopts.Debug,
	})
	ctx, cancel := context.WithTimeout(context.Background(), gopts.Timeout)
	return c, ctx, cancel
}

// print renders v as indented JSON on stdout.
func print(v any) error {
	bits, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(bits))
	return nil
}

func runCall(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("missing target argument")
	}
	target, err := farcall.ParseTarget(env.Args[0])
	if err != nil {
		return err
	}
	var args []any
	kwargs := make(map[string]any)
	for _, raw := range env.Args[1:] {
		if name, val, ok := strings.Cut(raw, "="); ok && name != "" {
			kwargs[name] = decodeArg(val)
		} else {
			args = append(args, decodeArg(raw))
		}
	}
	if len(kwargs) == 0 {
		kwargs = nil
	}
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	result, err := c.Call(ctx, target, args, kwargs)
	if err != nil {
		return err
	}
	return print(result)
}

// decodeArg interprets a command-line argument as a JSON value where
// possible, otherwise as a plain string.
func decodeArg(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func runPing(env *command.Env) error {
	msg := "ping"
	if len(env.Args) != 0 {
		msg = strings.Join(env.Args, " ")
	}
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	rsp, err := c.Ping(ctx, msg)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d ms)\n", rsp.Message, rsp.LatencyMillis)
	return nil
}

var healthOpts struct {
	Detailed bool `flag:"detailed,Include process resource usage"`
}

func runHealth(env *command.Env) error {
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	rsp, err := c.ServerHealth(ctx, healthOpts.Detailed)
	if err != nil {
		return err
	}
	return print(rsp)
}

var statusOpts struct {
	Config bool `flag:"config,Include the service configuration snapshot"`
}

func runStatus(env *command.Env) error {
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	rsp, err := c.ServerStatus(ctx, statusOpts.Config)
	if err != nil {
		return err
	}
	return print(rsp)
}

var readOpts struct {
	Binary bool `flag:"binary,Fetch raw bytes instead of text"`
}

func runRead(env *command.Env) error {
	if len(env.Args) != 1 {
		return env.Usagef("exactly one path is required")
	}
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	rsp, err := c.ReadFile(ctx, wire.ReadFileRequest{Path: env.Args[0], Binary: readOpts.Binary})
	if err != nil {
		return err
	} else if !rsp.Success {
		return fmt.Errorf("read %q: %s", env.Args[0], rsp.ErrorMessage)
	}
	if readOpts.Binary {
		os.Stdout.Write(rsp.Data)
	} else {
		io.WriteString(os.Stdout, rsp.Text)
	}
	return nil
}

var writeOpts struct {
	Append bool `flag:"append,Append to the file instead of replacing it"`
	Mkdir  bool `flag:"mkdir,Create missing parent directories"`
}

func runWrite(env *command.Env) error {
	if len(env.Args) != 1 {
		return env.Usagef("exactly one path is required")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	text := string(data)
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	rsp, err := c.WriteFile(ctx, wire.WriteFileRequest{
		Path:       env.Args[0],
		Text:       &text,
		CreateDirs: writeOpts.Mkdir,
		Append:     writeOpts.Append,
	})
	if err != nil {
		return err
	} else if !rsp.Success {
		return fmt.Errorf("write %q: %s", env.Args[0], rsp.ErrorMessage)
	}
	fmt.Printf("wrote %d bytes\n", rsp.BytesWritten)
	return nil
}

var lsOpts struct {
	Recursive bool   `flag:"r,Descend into subdirectories"`
	Hidden    bool   `flag:"hidden,Include hidden entries"`
	Pattern   string `flag:"glob,Restrict entries to this glob pattern"`
}

func runList(env *command.Env) error {
	if len(env.Args) != 1 {
		return env.Usagef("exactly one path is required")
	}
	var pats []string
	if lsOpts.Pattern != "" {
		pats = []string{lsOpts.Pattern}
	}
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	rsp, err := c.ListDir(ctx, wire.ListDirRequest{
		Path:          env.Args[0],
		Recursive:     lsOpts.Recursive,
		IncludeHidden: lsOpts.Hidden,
		Patterns:      pats,
	})
	if err != nil {
		return err
	} else if !rsp.Success {
		return fmt.Errorf("list %q: %s", env.Args[0], rsp.ErrorMessage)
	}
	for _, e := range rsp.Entries {
		kind := "-"
		if e.IsDir {
			kind = "d"
		}
		fmt.Printf("%s %10d  %s\n", kind, e.Size, e.Path)
	}
	return nil
}

var execOpts struct {
	Dir     string        `flag:"dir,Working directory for the command"`
	Timeout time.Duration `flag:"t,Execution budget (0 uses the service default)"`
}

func runExec(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("missing command argument")
	}
	c, ctx, cancel := newClient()
	defer cancel()
	defer c.Close()
	rsp, err := c.ExecCommand(ctx, wire.CommandRequest{
		Command:       env.Args[0],
		Args:          env.Args[1:],
		Dir:           execOpts.Dir,
		TimeoutMillis: execOpts.Timeout.Milliseconds(),
	})
	if err != nil {
		return err
	}
	io.WriteString(os.Stdout, rsp.Stdout)
	if rsp.Stderr != "" {
		io.WriteString(os.Stderr, rsp.Stderr)
	}
	if rsp.ExitCode != 0 {
		return fmt.Errorf("exit status %d: %s", rsp.ExitCode, rsp.ErrorMessage)
	}
	return nil
}
