// portalctl is a small operator CLI over the portal auth SDK: log in to an
// EasyBase backend, inspect the persisted session, manage server-side
// sessions and run the in-memory dev auth server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/easybase/go-portal-auth/authclient"
	"github.com/easybase/go-portal-auth/broadcast"
	"github.com/easybase/go-portal-auth/devserver"
	"github.com/easybase/go-portal-auth/internal/config"
	"github.com/easybase/go-portal-auth/session"
	"github.com/easybase/go-portal-auth/storage"
	"github.com/easybase/go-portal-auth/token"
	"github.com/easybase/go-portal-auth/users"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "portalctl: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("portalctl", flag.ContinueOnError)
	configPath := flags.String("config", "", "config file path (default ~/.easybase/portal.yaml)")
	flags.Usage = usage
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		usage()
		return errors.New("missing command")
	}

	cfg, err := config.New(*configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.GetLogLevel())

	command, commandArgs := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "login":
		return cmdLogin(cfg, log, commandArgs)
	case "status":
		return cmdStatus(cfg, log)
	case "sessions":
		return cmdSessions(cfg, log)
	case "logout":
		return cmdLogout(cfg, log)
	case "refresh":
		return cmdRefresh(cfg, log)
	case "dev":
		return cmdDev(cfg, log)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: portalctl [-config path] <command>

commands:
  login -user <name> -pass <password>   authenticate against the backend
  status                                show the current session
  sessions                              list active server-side sessions
  refresh                               force a token refresh
  logout                                revoke the session and clear state
  dev                                   run the in-memory dev auth server`)
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(parsed).With().Timestamp().Logger()
}

// newStore wires the SDK the way an embedding portal would: file-backed
// storage, the named broadcast channel and the configured auth client.
func newStore(cfg config.Config, log zerolog.Logger) (*session.Store, *authclient.Client) {
	var store *session.Store
	client := authclient.New(cfg.GetBaseURL(),
		authclient.WithBasePath(cfg.GetBasePath()),
		authclient.WithTimeout(cfg.GetHTTPTimeout()),
		authclient.WithLogger(log),
		authclient.WithTokenProvider(func() string {
			if store == nil {
				return ""
			}
			return store.AccessToken()
		}),
	)
	store = session.New(client,
		session.WithChannel(broadcast.Open(cfg.GetChannelName())),
		session.WithStorage(storage.NewFileStore(cfg.GetStoragePath())),
		session.WithLogger(log),
		session.WithCheckInterval(cfg.GetCheckInterval()),
		session.WithWarningBuffer(cfg.GetWarningBuffer()),
		session.WithRefreshBuffer(cfg.GetRefreshBuffer()),
	)
	return store, client
}

func cmdLogin(cfg config.Config, log zerolog.Logger, args []string) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	userName := flags.String("user", "", "user name")
	password := flags.String("pass", "", "password")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *userName == "" || *password == "" {
		return errors.New("login requires -user and -pass")
	}

	store, _ := newStore(cfg, log)
	defer store.Close()

	if err := store.Login(context.Background(), *userName, *password); err != nil {
		return err
	}

	snapshot := store.Snapshot()
	fmt.Printf("logged in as %s (session %s)\n", snapshot.User.DisplayName(), snapshot.SessionID)
	return nil
}

func cmdStatus(cfg config.Config, log zerolog.Logger) error {
	store, _ := newStore(cfg, log)
	defer store.Close()

	snapshot := store.Snapshot()
	if !snapshot.IsAuthenticated {
		fmt.Println("not logged in")
		return nil
	}

	fmt.Printf("user:      %s\n", snapshot.User.DisplayName())
	fmt.Printf("tenant:    %s\n", snapshot.User.TenantID)
	fmt.Printf("session:   %s\n", snapshot.SessionID)
	if expiry, ok := token.Expiry(snapshot.AccessToken); ok {
		fmt.Printf("expires:   %s (%s)\n", expiry.Format(time.RFC3339), time.Until(expiry).Round(time.Second))
	}
	if token.IsExpired(snapshot.AccessToken) {
		fmt.Println("access token expired; run 'portalctl refresh'")
	}
	return nil
}

func cmdSessions(cfg config.Config, log zerolog.Logger) error {
	store, client := newStore(cfg, log)
	defer store.Close()

	if !store.IsAuthenticated() {
		return errors.New("not logged in")
	}

	sessions, err := client.Sessions(context.Background())
	if err != nil {
		return err
	}

	for _, s := range sessions {
		marker := " "
		if s.Current {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %s  created %s\n",
			marker, s.SessionID, s.IPAddress, s.UserAgent, s.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func cmdRefresh(cfg config.Config, log zerolog.Logger) error {
	store, _ := newStore(cfg, log)
	defer store.Close()

	if !store.IsAuthenticated() {
		return errors.New("not logged in")
	}
	if err := store.RefreshTokens(context.Background()); err != nil {
		return err
	}

	if expiry, ok := token.Expiry(store.AccessToken()); ok {
		fmt.Printf("tokens refreshed; access token valid until %s\n", expiry.Format(time.RFC3339))
	}
	return nil
}

func cmdLogout(cfg config.Config, log zerolog.Logger) error {
	store, _ := newStore(cfg, log)
	defer store.Close()

	store.Logout(context.Background())
	fmt.Println("logged out")
	return nil
}

// cmdDev runs the in-memory auth backend with a demo account, using the same
// serve/shutdown loop as any of our HTTP services.
func cmdDev(cfg config.Config, log zerolog.Logger) error {
	displayAppName(cfg.GetAppName())

	dev := devserver.New([]byte(cfg.GetDevSigningKey()),
		devserver.WithBasePath(cfg.GetBasePath()),
		devserver.WithAccessTTL(cfg.GetDevAccessTTL()),
		devserver.WithRefreshTTL(cfg.GetDevRefreshTTL()),
		devserver.WithLogger(log),
	)
	err := dev.AddAccount(devserver.Account{
		UserID:      "dev-user-1",
		Email:       "admin@easybase.local",
		UserName:    "admin",
		TenantID:    "dev-tenant",
		Authorities: []users.AuthorityType{users.AuthoritySuperAdmin},
	}, "admin")
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetDevListenAddr(), Handler: dev}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("dev auth server listening (admin/admin)")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dev auth server stopped")
		}
	}()

	waitForStopSignal()
	return shutdown(httpServer)
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppName(appName string) {
	myFigure := figure.NewFigure(appName, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
