package cli

import (
	"context"
	"floatfetch/internal/apiclient"
	"floatfetch/internal/bootstrap"
	"floatfetch/internal/config"
	"floatfetch/internal/edge"
	"floatfetch/internal/floatplane"
	"floatfetch/internal/login"
	"floatfetch/internal/plex"
	"floatfetch/internal/prompt"
	"floatfetch/internal/utils"
	"fmt"
	"io"
	"os"
)

// app holds the collaborators shared by the interactive commands.
type app struct {
	cfg      *config.Config
	store    *config.Store
	prompter *prompt.Survey
	out      io.Writer
	clientID string
}

// mustStartApp takes the single-instance lock and builds the app, exiting on failure.
func mustStartApp() *app {
	isMaster, err := AcquireLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error acquiring lock: %v\n", err)
		os.Exit(1)
	}
	if !isMaster {
		fmt.Fprintln(os.Stderr, "Error: floatfetch is already running.")
		os.Exit(1)
	}
	onShutdown(ReleaseLock)

	cfg := appConfig
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &app{
		cfg:      cfg,
		store:    config.NewStore(cfg.SettingsPath),
		prompter: prompt.New(),
		out:      os.Stdout,
		clientID: ensureClientID(),
	}
}

func (a *app) apiOptions() []apiclient.Option {
	return []apiclient.Option{apiclient.WithRateLimit(a.cfg.RequestsPerSecond)}
}

func (a *app) floatplaneClient() (*floatplane.Client, error) {
	return floatplane.NewClient(a.cfg.FloatplaneURL, a.apiOptions()...)
}

func (a *app) plexClient() *plex.Client {
	return plex.NewClient(a.cfg.PlexURL, a.clientID, a.apiOptions()...)
}

// selector builds the probing selector. The prober is closed at shutdown.
func (a *app) selector() *recordingSelector {
	prober := edge.NewHTTPProber(a.cfg.ProbeScheme, a.cfg.ProbeProtocol)
	onShutdown(func() error {
		prober.Close()
		return nil
	})
	return &recordingSelector{selector: &edge.Selector{Prober: prober, Timeout: a.cfg.ProbeTimeout.Duration}}
}

// orchestrator wires the bootstrap. tokens, when non-nil, replaces the plex
// credential prompts.
func (a *app) orchestrator(tokens login.TokenSource) *bootstrap.Orchestrator {
	plexClient := a.plexClient()
	return &bootstrap.Orchestrator{
		Prompter:   a.prompter,
		VideoLogin: &login.Floatplane{Prompter: a.prompter, Out: a.out},
		MediaLogin: &login.Plex{Prompter: a.prompter, Client: plexClient, Tokens: tokens, Out: a.out},
		Discoverer: &plex.Service{
			Client: plexClient,
			Options: plex.DiscoverOptions{
				Concurrency:   a.cfg.DiscoveryConcurrency,
				ServerTimeout: a.cfg.ConnectTimeout.Duration,
			},
		},
		Selector: a.selector(),
		Out:      a.out,
		OnStage: func(s bootstrap.Stage) {
			utils.Debug("Entered stage %s", s)
		},
	}
}

// runFullSetup runs every bootstrap stage and marks the quickstart as done.
func (a *app) runFullSetup(ctx context.Context, settings *config.Settings) error {
	client, err := a.floatplaneClient()
	if err != nil {
		return err
	}
	if err := a.orchestrator(nil).RunFullBootstrap(ctx, settings, client); err != nil {
		return err
	}
	settings.RunQuickstartPrompts = false
	return nil
}
