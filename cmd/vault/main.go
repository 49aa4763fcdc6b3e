package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]

	// Dispatch to subcommand
	switch command {
	case "version", "--version":
		runVersion(ctx, os.Args[2:])
	case "scan":
		runScan(ctx, os.Args[2:])
	case "lockdown":
		runLockdown(ctx, os.Args[2:])
	case "unlock":
		runUnlock(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "init":
		runInit(ctx, os.Args[2:])
	case "add":
		runAdd(ctx, os.Args[2:])
	case "remove", "rm":
		runRemove(ctx, os.Args[2:])
	case "list", "ls":
		runList(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`vault - Lock down sensitive files before screen sharing or interviews

Usage:
  vault <command> [options]

Commands:
  init      Create the config directory, paths file and key material
  scan      Auto-detect sensitive paths under your home directory
  lockdown  Encrypt every configured path into the vault and remove the plaintext
  unlock    Decrypt and restore locked paths
  status    Show whether configured paths are locked
  add       Add paths to the paths file
  remove    Remove paths from the paths file
  list      Show the paths file
  version   Print version information

Environment:
  VAULT_CONFIG_DIR   Config directory (default ~/.config/vault)
  VAULT_DATA_DIR     Vault store directory (default ~/.local/share/vault)
  VAULT_PASSPHRASE   Passphrase for passphrase-mode backends
  VAULT_LOG_LEVEL    debug, info, warn, error or off (default warn)
  VAULT_LOG_FORMAT   console or json
  NO_COLOR           Disable colored output

Use "vault <command> --help" for more information about a command.`)
}
