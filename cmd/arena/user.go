package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/ernie/trinity-arena/internal/auth"
	"github.com/ernie/trinity-arena/internal/storage"
)

func cmdUser(args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("user subcommand required: add, remove, list, reset"))
	}
	subCmd := args[0]

	fs := flag.NewFlagSet("user "+subCmd, flag.ExitOnError)
	configPath, url, user := addCLIFlags(fs)
	isAdmin := fs.Bool("admin", false, "create as admin user")
	fs.Parse(args[1:])
	env := resolveCLIEnv(*configPath, *url, *user)

	store, err := storage.New(env.dbPath)
	if err != nil {
		fatal(fmt.Errorf("failed to open database: %w", err))
	}
	defer store.Close()

	ctx := context.Background()
	switch subCmd {
	case "add":
		err = cmdUserAdd(ctx, store, fs.Args(), *isAdmin)
	case "remove":
		err = cmdUserRemove(ctx, store, fs.Args())
	case "list":
		err = cmdUserList(ctx, store)
	case "reset":
		err = cmdUserReset(ctx, store, fs.Args())
	default:
		err = fmt.Errorf("unknown user command: %s (use: add, remove, list, reset)", subCmd)
	}
	if err != nil {
		store.Close()
		fatal(err)
	}
}

// promptNewPassword asks twice and enforces the minimum length
func promptNewPassword(prompt string) (string, error) {
	password, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func cmdUserAdd(ctx context.Context, store *storage.Store, args []string, isAdmin bool) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: arena user add [--admin] <username>")
	}
	username := args[0]

	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to check user: %w", err)
	}

	password, err := promptNewPassword("Enter password: ")
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := store.CreateUser(ctx, username, hash, isAdmin); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	role := "user"
	if isAdmin {
		role = "admin"
	}
	fmt.Printf("User '%s' created (role: %s)\n", username, role)
	return nil
}

func cmdUserRemove(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: arena user remove <username>")
	}
	if err := store.DeleteUser(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	fmt.Printf("User '%s' removed\n", args[0])
	return nil
}

func cmdUserList(ctx context.Context, store *storage.Store) error {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No users configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tPWD_CHANGE\tLAST_LOGIN")
	fmt.Fprintln(w, "--------\t----\t----------\t----------")
	for _, user := range users {
		role := "user"
		if user.IsAdmin {
			role = "admin"
		}
		pwdChange := "no"
		if user.PasswordChangeRequired {
			pwdChange = "yes"
		}
		lastLogin := "never"
		if user.LastLogin != nil {
			lastLogin = user.LastLogin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", user.Username, role, pwdChange, lastLogin)
	}
	return w.Flush()
}

func cmdUserReset(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: arena user reset <username>")
	}
	username := args[0]

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	password, err := promptNewPassword("Enter new password: ")
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := store.ResetUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	fmt.Printf("Password reset for '%s' (a new password is required on next login)\n", username)
	return nil
}
