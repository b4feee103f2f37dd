package main

import (
	"fmt"
	"os"
	"path/filepath"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/hpungsan/daylog/internal/config"
	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/logging"
	"github.com/hpungsan/daylog/internal/mcp"
	"github.com/hpungsan/daylog/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"record": true, "generate": true, "backfill": true,
	"show": true, "list": true, "edits": true,
	"export": true, "import": true,
	"serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion()
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       __            __
   ___/ /__ ___ __  / /__  ___ _
  / _  / _ '/ // / / / _ \/ _ '/
  \_,_/\_,_/\_, / /_/\___/\_, /
           /___/         /___/

  Your day, in a few bullets

  Usage: daylog <command> [options]
         daylog --help

  MCP server mode requires piped input.`)
}

// baseDir is $DAYLOG_HOME, or ~/.daylog.
func baseDir() (string, error) {
	if dir := os.Getenv("DAYLOG_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, config.DirName), nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	dir, err := baseDir()
	if err != nil {
		fatal("%v", err)
	}

	log, err := logging.New(filepath.Join(dir, "logs"), os.Getenv("DAYLOG_DEBUG") != "")
	if err != nil {
		fatal("failed to initialize logging: %v", err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Init(dir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(dir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	db.ConfigurePool(database, cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	env := ops.NewEnv(database, cfg, dir, log)

	// CLI mode: known subcommand
	if isCLIMode() {
		if err := newCLIApp(env).Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'daylog --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(env, Version); err != nil {
		fatal("%v", err)
	}
}
