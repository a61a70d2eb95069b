package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"skyhero/internal/infra"
	"skyhero/internal/infra/settings"
	"skyhero/internal/storage"
)

func main() {
	_ = godotenv.Load()

	setPassword := flag.Bool("set-password", false, "prompt for a new dashboard password")
	disablePassword := flag.Bool("disable-password", false, "remove the dashboard password")
	selfHealing := flag.String("self-healing", "", "on, off or status")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	state, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "data dir:", err)
		os.Exit(1)
	}
	store := settings.NewStore(state)

	if err := run(context.Background(), store, *setPassword, *disablePassword, *selfHealing); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store *settings.Store, setPassword, disablePassword bool, selfHealing string) error {
	switch {
	case setPassword:
		pw, err := prompt("Enter new password: ")
		if err != nil {
			return err
		}
		confirm, err := prompt("Confirm new password: ")
		if err != nil {
			return err
		}
		if pw != confirm {
			return errors.New("passwords do not match, aborting")
		}
		if err := store.SetPassword(ctx, pw); err != nil {
			return err
		}
		fmt.Println("Password updated successfully.")
	case disablePassword:
		enabled, err := store.PasswordEnabled(ctx)
		if err != nil {
			return err
		}
		if !enabled {
			fmt.Println("No password was set.")
			return nil
		}
		if err := store.DisablePassword(ctx); err != nil {
			return err
		}
		fmt.Println("Password disabled successfully.")
	case selfHealing != "":
		return selfHealingCommand(ctx, store, strings.ToLower(selfHealing))
	default:
		flag.Usage()
		return errors.New("no action given")
	}
	return nil
}

func selfHealingCommand(ctx context.Context, store *settings.Store, action string) error {
	switch action {
	case "on", "off":
		if err := store.SetSelfHealing(ctx, action == "on"); err != nil {
			return err
		}
		fmt.Printf("Self-healing turned %s. Restart the api and worker to apply.\n", action)
	case "status":
		enabled, err := store.SelfHealingEnabled(ctx)
		if err != nil {
			return err
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Printf("Self-healing is %s.\n", state)
	default:
		return fmt.Errorf("self-healing: unknown action %q (want on, off or status)", action)
	}
	return nil
}

func prompt(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password prompt needs an interactive terminal")
	}
	fmt.Print(label)
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
