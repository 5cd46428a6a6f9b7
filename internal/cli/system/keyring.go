package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/keyring"
	"github.com/julianstephens/estimator/internal/storage/postgres"
)

// KeyringSetCmd stores the database connection string in the OS keyring
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring"`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	out := ctx.Stdout()
	if !cli.IsPostgres(cmd.ConnectionString) && !strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		fmt.Fprintln(out, "⚠️  Warning: Connection string contains embedded credentials.")
		fmt.Fprintln(out, "   It will be stored as-is in the encrypted OS keyring.")
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Connection string stored successfully in OS keyring")
	fmt.Fprintln(out, "  Estimates will be kept in PostgreSQL unless --config names another store")
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'estimator keyring set' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}

	fmt.Fprintln(ctx.Stdout(), "Connection string retrieved from keyring:")
	fmt.Fprintln(ctx.Stdout(), maskPassword(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	fmt.Fprintln(ctx.Stdout(), "✓ Connection string deleted from OS keyring")
	return nil
}

// KeyringSetTokenCmd stores the estimate server API token
type KeyringSetTokenCmd struct {
	Token string `arg:"" help:"Bearer token for the estimate server"`
}

func (cmd *KeyringSetTokenCmd) Run(ctx *cli.Context) error {
	if err := keyring.SetAPIToken(strings.TrimSpace(cmd.Token)); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout(), "✓ API token stored successfully in OS keyring")
	return nil
}

type KeyringDeleteTokenCmd struct{}

func (cmd *KeyringDeleteTokenCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteAPIToken(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no API token found in keyring")
		}
		return err
	}
	fmt.Fprintln(ctx.Stdout(), "✓ API token deleted from OS keyring")
	return nil
}

// KeyringStatusCmd checks the availability of the OS keyring
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	out := ctx.Stdout()
	if !keyring.IsAvailable() {
		fmt.Fprintln(out, "❌ OS keyring is not available on this system")
		return keyring.ErrKeyringUnavailable
	}
	fmt.Fprintln(out, "✓ OS keyring is available")

	for _, item := range []struct {
		name string
		get  func() (string, error)
	}{
		{"Connection string", keyring.GetConnectionString},
		{"API token", keyring.GetAPIToken},
	} {
		_, err := item.get()
		switch {
		case err == nil:
			fmt.Fprintf(out, "✓ %s is stored in keyring\n", item.name)
		case errors.Is(err, keyring.ErrNotFound):
			fmt.Fprintf(out, "ℹ No %s stored in keyring\n", strings.ToLower(item.name))
		default:
			fmt.Fprintf(out, "⚠ %s: %v\n", item.name, err)
		}
	}
	return nil
}

// maskPassword hides the password of a URL or key=value connection string.
func maskPassword(connStr string) string {
	if cli.IsPostgres(connStr) {
		idx := strings.Index(connStr, "://")
		remaining := connStr[idx+3:]
		if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
			userInfo := remaining[:atIdx]
			if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
				return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + remaining[atIdx:]
			}
		}
		return connStr
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}

	return connStr
}
