package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cliConfig struct {
	server     string
	jsonOutput bool
	ephemeral  bool
}

func main() {
	cli, command, args, err := parseArgs(os.Args[1:])
	if errors.Is(err, errShowUsage) {
		printUsage(os.Stdout)
		if len(os.Args) == 1 {
			os.Exit(1)
		}
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	switch command {
	case "version":
		fmt.Printf("console %s (commit: %s, built: %s)\n", version, commit, date)
		return
	case "help":
		printUsage(os.Stdout)
		return
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, closeApp, err := newApp(ctx, cfg, cli, os.Stdin, os.Stdout, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describeError(err))
		os.Exit(1)
	}
	defer closeApp()

	if err := a.run(ctx, command, args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describeError(err))
		closeApp()
		os.Exit(1)
	}
}

var errShowUsage = errors.New("show usage")

func parseArgs(args []string) (cliConfig, string, []string, error) {
	cli := cliConfig{}

	idx := 0
	for idx < len(args) {
		arg := args[idx]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		switch arg {
		case "--help", "-h":
			return cli, "", nil, errShowUsage
		case "--server", "-s":
			if idx+1 >= len(args) {
				return cli, "", nil, fmt.Errorf("--server requires a value")
			}
			cli.server = args[idx+1]
			idx += 2
		case "--json":
			cli.jsonOutput = true
			idx++
		case "--ephemeral":
			cli.ephemeral = true
			idx++
		default:
			return cli, "", nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if idx >= len(args) {
		return cli, "", nil, errShowUsage
	}

	return cli, args[idx], args[idx+1:], nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: console [--server <url>] [--json] [--ephemeral] <command>

Session:
  login [username]              Sign in (password from CONSOLE_PASSWORD or prompt)
  logout                        Sign out and forget the stored tokens
  whoami                        Show the signed-in identity
  menu                          List the sections available to your role

Conduct:
  classrooms                    List classrooms (staff)
  students [classroom-id]       List students
  event-types                   List event types
  events [student-id]           List conduct events
  event create <type-id> [--student <id>] [note...]
                                Record an event (students record their own)
  permission                    Check your event permission (students)
  grant <student-id> [days] [notes...]
                                Grant a student event permission (staff)
  revoke <student-id>           Revoke a student's event permission (staff)

Other:
  request <METHOD> <PATH> [JSON]
                                Send an authenticated request to the API
  shell                         Run several commands in one session
  version                       Print version information

--ephemeral keeps tokens in memory only; combine it with shell.
`)
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
