package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atriumlabs/atrium"
	"github.com/atriumlabs/atrium/auth"
)

var rootCmd = &cobra.Command{
	Use:           "atrium",
	Short:         "Terminal client for the Atrium learning platform",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("base-url", "https://api.atrium.example.com", "API base URL")
	pf.Duration("timeout", 0, "overall deadline per request or stream (0 = none)")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.String("email", "", "account email (or ATRIUM_EMAIL)")
	pf.String("password", "", "account password (or ATRIUM_PASSWORD)")

	viper.SetEnvPrefix("ATRIUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"base-url", "timeout", "verbose", "email", "password"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(askCmd, chatCmd, entitlementCmd)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// signIn returns a credential store and refresher ready for API calls. A
// credential persisted by a previous run is reused; otherwise the
// configured email and password are exchanged for a fresh one. Expired
// credentials are not a problem either way, the refresher recovers them.
func signIn(ctx context.Context, log zerolog.Logger) (atrium.CredentialStore, *auth.Refresher, error) {
	store, err := auth.NewFileStore(credentialPath())
	if err != nil {
		return nil, nil, err
	}

	client := auth.NewClient(viper.GetString("base-url"), auth.WithLogger(log))

	if _, ok := store.Credential(); !ok {
		email := viper.GetString("email")
		password := viper.GetString("password")
		if email == "" || password == "" {
			return nil, nil, fmt.Errorf("not signed in: set --email and --password (or ATRIUM_EMAIL / ATRIUM_PASSWORD)")
		}
		cred, err := client.SignIn(ctx, email, password)
		if err != nil {
			return nil, nil, fmt.Errorf("sign in: %w", err)
		}
		store.SetCredential(cred)
	}

	refresher := auth.NewRefresher(store, client,
		auth.WithRefresherLogger(log),
		auth.WithSessionHooks(stderrHooks{}),
	)
	return store, refresher, nil
}

func credentialPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".atrium", "credentials.json")
}

// stderrHooks tells the user their session ended; the surrounding command
// exits with the error that triggered it.
type stderrHooks struct{}

func (stderrHooks) SessionInvalidated() {
	fmt.Fprintln(os.Stderr, "session expired, please sign in again")
}

var _ atrium.SessionHooks = stderrHooks{}

func configuredTimeout() time.Duration {
	return viper.GetDuration("timeout")
}
