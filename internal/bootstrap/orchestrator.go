package bootstrap

import (
	"context"
	"errors"
	"floatfetch/internal/config"
	"floatfetch/internal/edge"
	"floatfetch/internal/plex"
	"floatfetch/internal/utils"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mgutz/ansi"
)

// Prompter asks the operator one question per method. Each receives the
// current value as the default and returns the answer.
type Prompter interface {
	VideoFolder(current string) (string, error)
	VideosToSearch(current int) (int, error)
	DownloadThreads(current int) (int, error)
	VideoResolution(current int, options []int) (int, error)
	FileFormatting(current string, tokens []string) (string, error)
	Extras(current config.Extras, known []string) ([]string, error)
	Repeat(current bool) (bool, error)
	RepeatInterval(current string) (string, error)
	FindClosestEdgeNow() (bool, error)
	AutoFindClosestEdge(current bool) (bool, error)
	UsePlex(current bool) (bool, error)
	PlexSections(current []string, candidates []plex.DiscoveredSection) ([]string, error)
}

// VideoServiceClient is the authenticated video-service API.
type VideoServiceClient interface {
	ListEdges(ctx context.Context) ([]edge.Candidate, error)
}

// VideoServiceLogin authenticates client, prompting for credentials as needed.
type VideoServiceLogin interface {
	LoginVideoService(ctx context.Context, client VideoServiceClient) error
}

// MediaServerLogin obtains a media-server auth token.
type MediaServerLogin interface {
	LoginMediaServer(ctx context.Context) (string, error)
}

// SectionDiscoverer lists show sections reachable with token.
type SectionDiscoverer interface {
	DiscoverShowSections(ctx context.Context, token string) (plex.Discovery, error)
}

// EdgeSelector picks the closest edge.
type EdgeSelector interface {
	SelectClosest(ctx context.Context, candidates []edge.Candidate) (edge.Candidate, error)
}

// Orchestrator drives the first-run bootstrap. It is the only writer of the
// settings it is handed during a run.
type Orchestrator struct {
	Prompter   Prompter
	VideoLogin VideoServiceLogin
	MediaLogin MediaServerLogin
	Discoverer SectionDiscoverer
	Selector   EdgeSelector

	// Out receives operator-facing messages. Nil discards them.
	Out io.Writer

	// OnStage, if set, is called as each stage is entered.
	OnStage func(Stage)
}

type runState struct {
	settings *config.Settings
	plex     *config.PlexSettings
	client   VideoServiceClient

	// fullRun always re-selects sections after a plex login.
	fullRun bool

	// notifyMissing explains each missing plex value before it is prompted for.
	notifyMissing bool
}

type stageFunc func(ctx context.Context, run *runState) (Stage, error)

func (o *Orchestrator) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

func (o *Orchestrator) printf(format string, args ...any) {
	fmt.Fprintf(o.out(), format, args...)
}

func (o *Orchestrator) header(title, color string) {
	o.printf("\n== %s ==\n\n", ansi.Color(title, color))
}

func (o *Orchestrator) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	utils.Debug("Warning: %s", msg)
	o.printf("Warning: %s\n", msg)
}

func (o *Orchestrator) stages() map[Stage]stageFunc {
	return map[Stage]stageFunc{
		StageStart:             o.start,
		StageGeneralPrefs:      o.generalPrefs,
		StageVideoServiceLogin: o.videoServiceLogin,
		StageEdgeDecision:      o.edgeDecision,
		StagePlexDecision:      o.plexDecision,
		StagePlexLogin:         o.plexLogin,
		StagePlexSectionSync:   o.plexSectionSync,
	}
}

func (o *Orchestrator) run(ctx context.Context, from Stage, run *runState) error {
	stages := o.stages()
	stage := from
	for {
		if o.OnStage != nil {
			o.OnStage(stage)
		}
		utils.Debug("Bootstrap stage: %s", stage)
		if stage == StageDone {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fn, ok := stages[stage]
		if !ok {
			return fmt.Errorf("bootstrap: no handler for stage %s", stage)
		}
		next, err := fn(ctx, run)
		if err != nil {
			utils.Debug("Bootstrap stage %s failed: %v", stage, err)
			return err
		}
		stage = next
	}
}

// RunFullBootstrap walks the operator through every stage, writing answers
// into settings. On error settings may be partially updated and should not be
// persisted.
func (o *Orchestrator) RunFullBootstrap(ctx context.Context, settings *config.Settings, client VideoServiceClient) error {
	if settings == nil {
		return errors.New("bootstrap: nil settings")
	}
	return o.run(ctx, StageStart, &runState{
		settings: settings,
		plex:     &settings.Plex,
		client:   client,
		fullRun:  true,
	})
}

// EnsureMediaServerConfigured fills in whatever an enabled plex integration is
// missing: a token, then sections. A disabled or complete integration is left
// untouched. promptIfMissing prints a notice explaining each prompt.
func (o *Orchestrator) EnsureMediaServerConfigured(ctx context.Context, plexSettings *config.PlexSettings, promptIfMissing bool) error {
	if plexSettings == nil || !plexSettings.Enabled {
		return nil
	}
	run := &runState{plex: plexSettings, notifyMissing: promptIfMissing}
	switch {
	case plexSettings.Token == "":
		if promptIfMissing {
			o.printf("Missing plex token!\n")
		}
		return o.run(ctx, StagePlexLogin, run)
	case len(plexSettings.SectionsToUpdate) == 0:
		if promptIfMissing {
			o.printf("No plex sections specified to update!\n")
		}
		return o.run(ctx, StagePlexSectionSync, run)
	default:
		return nil
	}
}

// SyncMediaServerSections re-runs section selection, logging in first when
// no token is stored.
func (o *Orchestrator) SyncMediaServerSections(ctx context.Context, plexSettings *config.PlexSettings) error {
	if plexSettings == nil {
		return errors.New("bootstrap: nil plex settings")
	}
	run := &runState{plex: plexSettings, fullRun: true}
	if plexSettings.Token == "" {
		return o.run(ctx, StagePlexLogin, run)
	}
	return o.run(ctx, StagePlexSectionSync, run)
}

func (o *Orchestrator) start(ctx context.Context, run *runState) (Stage, error) {
	o.printf("Welcome to floatfetch! Thanks for checking it out <3.\n")
	o.printf("According to your settings this is your first launch! So let's go through the basic setup...\n")
	return StageGeneralPrefs, nil
}

func (o *Orchestrator) generalPrefs(ctx context.Context, run *runState) (Stage, error) {
	s := run.settings
	o.header("General", "208")

	folder, err := o.Prompter.VideoFolder(s.VideoFolder)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(folder) == "" {
		return 0, fmt.Errorf("%w: video folder is empty", config.ErrInvalidSetting)
	}

	toSearch, err := o.Prompter.VideosToSearch(s.Floatplane.VideosToSearch)
	if err != nil {
		return 0, err
	}
	if toSearch < 0 {
		return 0, fmt.Errorf("%w: videos to search must be >= 0", config.ErrInvalidSetting)
	}

	threads, err := o.Prompter.DownloadThreads(s.DownloadThreads)
	if err != nil {
		return 0, err
	}
	if err := config.ValidateDownloadThreads(threads); err != nil {
		return 0, err
	}

	resolution, err := o.Prompter.VideoResolution(s.Floatplane.VideoResolution, config.Resolutions)
	if err != nil {
		return 0, err
	}
	if !config.IsValidResolution(resolution) {
		return 0, fmt.Errorf("%w: resolution %d is not one of %v", config.ErrInvalidSetting, resolution, config.Resolutions)
	}

	tokens := s.FileFormattingOptions
	if len(tokens) == 0 {
		tokens = config.FileFormattingTokens
	}
	format, err := o.Prompter.FileFormatting(s.FileFormatting, tokens)
	if err != nil {
		return 0, err
	}
	if err := config.ValidateFileFormatting(format, tokens); err != nil {
		return 0, err
	}

	enabled, err := o.Prompter.Extras(s.Extras, config.KnownExtras)
	if err != nil {
		return 0, err
	}
	for _, key := range enabled {
		if !slices.Contains(config.KnownExtras, key) {
			return 0, fmt.Errorf("%w: unknown extra %q", config.ErrInvalidSetting, key)
		}
	}

	repeat, err := o.Prompter.Repeat(s.Repeat.Enabled)
	if err != nil {
		return 0, err
	}
	interval := s.Repeat.Interval
	if !repeat && config.ValidateRepeatInterval(interval) != nil {
		interval = config.DefaultRepeatInterval
	}
	if repeat {
		if interval, err = o.Prompter.RepeatInterval(s.Repeat.Interval); err != nil {
			return 0, err
		}
		if err := config.ValidateRepeatInterval(interval); err != nil {
			return 0, err
		}
	}

	s.VideoFolder = folder
	s.Floatplane.VideosToSearch = toSearch
	s.DownloadThreads = threads
	s.Floatplane.VideoResolution = resolution
	s.FileFormatting = format
	// The answer replaces the whole extras map, so unselected and unknown keys go.
	extras := make(config.Extras, len(config.KnownExtras))
	for _, key := range config.KnownExtras {
		extras[key] = slices.Contains(enabled, key)
	}
	s.Extras = extras
	s.Repeat.Enabled = repeat
	s.Repeat.Interval = interval

	return StageVideoServiceLogin, nil
}

func (o *Orchestrator) videoServiceLogin(ctx context.Context, run *runState) (Stage, error) {
	o.header("Floatplane", "208")
	o.printf("Next we are going to login to floatplane...\n")

	if err := o.VideoLogin.LoginVideoService(ctx, run.client); err != nil {
		return 0, &AuthError{Service: "floatplane", Err: err}
	}
	return StageEdgeDecision, nil
}

func (o *Orchestrator) edgeDecision(ctx context.Context, run *runState) (Stage, error) {
	s := run.settings

	probe, err := o.Prompter.FindClosestEdgeNow()
	if err != nil {
		return 0, err
	}
	if probe {
		if err := o.selectEdge(ctx, run); err != nil {
			return 0, err
		}
	}
	o.printf("Closest edge server found is: %q\n\n", s.Floatplane.Edge)

	auto, err := o.Prompter.AutoFindClosestEdge(s.Floatplane.FindClosestEdge)
	if err != nil {
		return 0, err
	}
	s.Floatplane.FindClosestEdge = auto
	return StagePlexDecision, nil
}

// selectEdge stores the closest edge. Listing or probing failures keep the
// previous edge; only cancellation is returned.
func (o *Orchestrator) selectEdge(ctx context.Context, run *runState) error {
	s := run.settings
	if run.client == nil {
		o.warnf("no video service client, keeping edge %q", s.Floatplane.Edge)
		return nil
	}

	candidates, err := run.client.ListEdges(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		o.warnf("could not list edge servers (%v), keeping edge %q", err, s.Floatplane.Edge)
		return nil
	}

	best, err := o.Selector.SelectClosest(ctx, candidates)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, edge.ErrNoReachableCandidate) {
			o.warnf("none of %d edge servers answered, keeping edge %q", len(candidates), s.Floatplane.Edge)
		} else {
			o.warnf("edge selection failed (%v), keeping edge %q", err, s.Floatplane.Edge)
		}
		return nil
	}
	s.Floatplane.Edge = best.Host
	return nil
}

func (o *Orchestrator) plexDecision(ctx context.Context, run *runState) (Stage, error) {
	o.header("Plex", "208")

	use, err := o.Prompter.UsePlex(run.plex.Enabled)
	if err != nil {
		return 0, err
	}
	run.plex.Enabled = use
	if !use {
		o.header("All Setup!", "cyan")
		return StageDone, nil
	}
	return StagePlexLogin, nil
}

func (o *Orchestrator) plexLogin(ctx context.Context, run *runState) (Stage, error) {
	token, err := o.MediaLogin.LoginMediaServer(ctx)
	if err != nil {
		return 0, &AuthError{Service: "plex", Err: err}
	}
	if token == "" {
		return 0, &AuthError{Service: "plex", Err: errors.New("empty token")}
	}
	run.plex.Token = token

	if !run.fullRun && len(run.plex.SectionsToUpdate) > 0 {
		return StageDone, nil
	}
	if run.notifyMissing {
		o.printf("No plex sections specified to update!\n")
	}
	return StagePlexSectionSync, nil
}

func (o *Orchestrator) plexSectionSync(ctx context.Context, run *runState) (Stage, error) {
	p := run.plex

	discovery, err := o.Discoverer.DiscoverShowSections(ctx, p.Token)
	if err != nil {
		return 0, fmt.Errorf("discover plex sections: %w", err)
	}
	for _, failure := range discovery.Failures {
		o.warnf("skipped plex server %q: %v", failure.Server, failure.Err)
	}

	ids := discovery.IDs()
	var selected []string
	if len(ids) == 0 {
		o.printf("No show sections were found on your plex servers.\n")
	} else {
		defaults := make([]string, 0, len(p.SectionsToUpdate))
		for _, id := range p.SectionsToUpdate {
			if slices.Contains(ids, id) {
				defaults = append(defaults, id)
			}
		}
		selected, err = o.Prompter.PlexSections(defaults, discovery.Sections)
		if err != nil {
			return 0, err
		}
		for _, id := range selected {
			if !slices.Contains(ids, id) {
				return 0, fmt.Errorf("%w: unknown plex section %q", config.ErrInvalidSetting, id)
			}
		}
	}

	if selected == nil {
		selected = []string{}
	}
	p.SectionsToUpdate = selected
	if len(selected) == 0 {
		o.printf("You didn't specify any plex sections to update! Disabling plex integration...\n\n")
		p.Enabled = false
	}

	if run.fullRun && run.settings != nil {
		o.header("All Setup!", "cyan")
	}
	return StageDone, nil
}
