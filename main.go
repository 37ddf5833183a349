package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kryndex/passcards/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "import":
		runImport(ctx, os.Args[2:])
	case "ls", "list":
		runLs(ctx, os.Args[2:])
	case "show":
		runShow(ctx, os.Args[2:])
	case "add":
		runAdd(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "history":
		runHistory(ctx, os.Args[2:])
	case "diff":
		runDiff(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	hint := fs.String("hint", "", "Master password hint")
	iterations := fs.Int("iterations", 100000, "PBKDF2 iteration count")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Init(ctx, *hint, *iterations)
}

func runImport(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: passcards import <keychain-dir>")
		os.Exit(1)
	}

	cmd.Import(ctx, fs.Arg(0))
}

func runLs(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	trashed := fs.Bool("trashed", false, "Include trashed items")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Ls(ctx, *trashed)
}

func runShow(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	revision := fs.String("revision", "", "Show a specific revision instead of the current one")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: passcards show [--revision <rev>] <uuid>")
		os.Exit(1)
	}

	cmd.Show(ctx, fs.Arg(0), *revision)
}

func runAdd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "Item title (required)")
	location := fs.String("url", "", "Website address")
	username := fs.String("user", "", "Username")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if *title == "" {
		fmt.Fprintln(os.Stderr, "Usage: passcards add --title <title> [--url <url>] [--user <name>]")
		os.Exit(1)
	}

	cmd.Add(ctx, *title, *location, *username)
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passcards rm <uuid> [uuid...]")
		os.Exit(1)
	}

	cmd.Remove(ctx, fs.Args())
}

func runHistory(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: passcards history <uuid>")
		os.Exit(1)
	}

	cmd.History(ctx, fs.Arg(0))
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Usage: passcards diff <uuid> <revision-a> <revision-b>")
		os.Exit(1)
	}

	cmd.Diff(ctx, fs.Arg(0), fs.Arg(1), fs.Arg(2))
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Status(ctx)
}

func runKeyring(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passcards keyring <save|rm|status>")
		os.Exit(1)
	}
	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx)
	case "rm":
		cmd.KeyringDelete(ctx)
	case "status":
		cmd.KeyringStatus(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("passcards - Local encrypted password store")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  passcards <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init       Create a new vault")
	fmt.Println("  import     Import items from a legacy keychain directory")
	fmt.Println("  ls, list   List items")
	fmt.Println("  show       Show an item with its decrypted content")
	fmt.Println("  add        Add a login item")
	fmt.Println("  rm         Delete items")
	fmt.Println("  history    List an item's revisions")
	fmt.Println("  diff       Compare two revisions of an item")
	fmt.Println("  status     Show vault status")
	fmt.Println("  keyring    Manage the master password in the OS keyring")
	fmt.Println("  help       Show help for a command")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  PASSCARDS_VAULT     Vault database path (default: ./passcards.db)")
	fmt.Println("  PASSCARDS_PASSWORD  Master password, for scripting")
	fmt.Println()
	fmt.Println("Use 'passcards help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("passcards init [--hint <text>] [--iterations <n>]")
		fmt.Println()
		fmt.Println("Creates a new vault and its master key.")
		fmt.Println("Prompts for the master password with confirmation.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --hint        Store a password hint shown after a failed unlock")
		fmt.Println("  --iterations  PBKDF2 iteration count (default 100000)")
	case "import":
		fmt.Println("passcards import <keychain-dir>")
		fmt.Println()
		fmt.Println("Imports master keys and items from a legacy file-backed")
		fmt.Println("keychain directory. Items keep their uuids and timestamps.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  passcards import ~/Dropbox/1Password.agilekeychain")
	case "ls", "list":
		fmt.Println("passcards ls [--trashed]")
		fmt.Println()
		fmt.Println("Lists items sorted by title. Trashed items are hidden")
		fmt.Println("unless --trashed is given.")
	case "show":
		fmt.Println("passcards show [--revision <rev>] <uuid>")
		fmt.Println()
		fmt.Println("Shows an item's overview and decrypted content.")
		fmt.Println("With --revision, shows that historical snapshot instead.")
	case "add":
		fmt.Println("passcards add --title <title> [--url <url>] [--user <name>]")
		fmt.Println()
		fmt.Println("Adds a login item. Prompts for the password so it never")
		fmt.Println("appears in shell history.")
	case "rm":
		fmt.Println("passcards rm <uuid> [uuid...]")
		fmt.Println()
		fmt.Println("Deletes items. A tombstone revision is kept so the")
		fmt.Println("deletion propagates to other copies of the vault.")
	case "history":
		fmt.Println("passcards history <uuid>")
		fmt.Println()
		fmt.Println("Lists an item's revisions, newest first. The current")
		fmt.Println("revision is marked with *.")
	case "diff":
		fmt.Println("passcards diff <uuid> <revision-a> <revision-b>")
		fmt.Println()
		fmt.Println("Shows a line diff between two revisions of an item.")
		fmt.Println("Use 'passcards history' to find revision ids.")
	case "status":
		fmt.Println("passcards status")
		fmt.Println()
		fmt.Println("Shows vault location, key count, hint, and keyring state.")
		fmt.Println("Item counts are shown when the vault can be unlocked")
		fmt.Println("without prompting (keyring or PASSCARDS_PASSWORD).")
	case "keyring":
		fmt.Println("passcards keyring <save|rm|status>")
		fmt.Println()
		fmt.Println("Manages the master password in the OS keyring so other")
		fmt.Println("commands can unlock without prompting.")
		fmt.Println()
		fmt.Println("Subcommands:")
		fmt.Println("  save    Verify the password and store it")
		fmt.Println("  rm      Remove the stored password")
		fmt.Println("  status  Report whether a password is stored")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
