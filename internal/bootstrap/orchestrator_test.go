package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"floatfetch/internal/config"
	"floatfetch/internal/edge"
	"floatfetch/internal/plex"
	"reflect"
	"slices"
	"strings"
	"testing"
)

type fakePrompter struct {
	folder         string
	toSearch       int
	threads        int
	resolution     int
	format         string
	extras         []string
	repeat         bool
	interval       string
	probeNow       bool
	autoEdge       bool
	usePlex        bool
	sections       []string
	sectionsFn     func(current []string, candidates []plex.DiscoveredSection) []string
	gotSectionsDef []string
	asked          []string
	err            error
	errOn          string
}

func newFakePrompter() *fakePrompter {
	return &fakePrompter{
		folder:     "/media/floatplane",
		toSearch:   10,
		threads:    4,
		resolution: 2160,
		format:     "%channelTitle% - %videoTitle%",
		extras:     []string{config.ExtraSaveNfo},
		repeat:     true,
		interval:   "01:00:00",
		probeNow:   true,
		autoEdge:   false,
		usePlex:    true,
		sections:   []string{"home:TV Shows"},
	}
}

func (f *fakePrompter) ask(name string) error {
	f.asked = append(f.asked, name)
	if f.errOn == name {
		return f.err
	}
	return nil
}

func (f *fakePrompter) VideoFolder(string) (string, error) { return f.folder, f.ask("VideoFolder") }
func (f *fakePrompter) VideosToSearch(int) (int, error)    { return f.toSearch, f.ask("VideosToSearch") }
func (f *fakePrompter) DownloadThreads(int) (int, error)   { return f.threads, f.ask("DownloadThreads") }
func (f *fakePrompter) VideoResolution(int, []int) (int, error) {
	return f.resolution, f.ask("VideoResolution")
}
func (f *fakePrompter) FileFormatting(string, []string) (string, error) {
	return f.format, f.ask("FileFormatting")
}
func (f *fakePrompter) Extras(config.Extras, []string) ([]string, error) {
	return f.extras, f.ask("Extras")
}
func (f *fakePrompter) Repeat(bool) (bool, error)             { return f.repeat, f.ask("Repeat") }
func (f *fakePrompter) RepeatInterval(string) (string, error) { return f.interval, f.ask("RepeatInterval") }
func (f *fakePrompter) FindClosestEdgeNow() (bool, error)     { return f.probeNow, f.ask("FindClosestEdgeNow") }
func (f *fakePrompter) AutoFindClosestEdge(bool) (bool, error) {
	return f.autoEdge, f.ask("AutoFindClosestEdge")
}
func (f *fakePrompter) UsePlex(bool) (bool, error) { return f.usePlex, f.ask("UsePlex") }
func (f *fakePrompter) PlexSections(current []string, candidates []plex.DiscoveredSection) ([]string, error) {
	f.gotSectionsDef = slices.Clone(current)
	if f.sectionsFn != nil {
		return f.sectionsFn(current, candidates), f.ask("PlexSections")
	}
	return f.sections, f.ask("PlexSections")
}

type fakeVideoLogin struct {
	err   error
	calls int
}

func (f *fakeVideoLogin) LoginVideoService(ctx context.Context, client VideoServiceClient) error {
	f.calls++
	return f.err
}

type fakeMediaLogin struct {
	token string
	err   error
	calls int
}

func (f *fakeMediaLogin) LoginMediaServer(ctx context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeDiscoverer struct {
	discovery plex.Discovery
	err       error
	calls     int
	gotToken  string
}

func (f *fakeDiscoverer) DiscoverShowSections(ctx context.Context, token string) (plex.Discovery, error) {
	f.calls++
	f.gotToken = token
	return f.discovery, f.err
}

type fakeSelector struct {
	pick  string
	err   error
	calls int
}

func (f *fakeSelector) SelectClosest(ctx context.Context, candidates []edge.Candidate) (edge.Candidate, error) {
	f.calls++
	if f.err != nil {
		return edge.Candidate{}, f.err
	}
	for _, c := range candidates {
		if c.Host == f.pick {
			return c, nil
		}
	}
	return edge.Candidate{}, edge.ErrNoReachableCandidate
}

type fakeVideoClient struct {
	edges []edge.Candidate
	err   error
}

func (f *fakeVideoClient) ListEdges(ctx context.Context) ([]edge.Candidate, error) {
	return f.edges, f.err
}

func section(server, title string) plex.DiscoveredSection {
	return plex.DiscoveredSection{Server: server, Section: plex.Section{Key: title, Title: title, Type: plex.SectionTypeShow}}
}

type harness struct {
	prompter   *fakePrompter
	videoLogin *fakeVideoLogin
	mediaLogin *fakeMediaLogin
	discoverer *fakeDiscoverer
	selector   *fakeSelector
	client     *fakeVideoClient
	out        *bytes.Buffer
	stages     []Stage
	orch       *Orchestrator
}

func newHarness() *harness {
	h := &harness{
		prompter:   newFakePrompter(),
		videoLogin: &fakeVideoLogin{},
		mediaLogin: &fakeMediaLogin{token: "plex-token"},
		discoverer: &fakeDiscoverer{discovery: plex.Discovery{Sections: []plex.DiscoveredSection{
			section("home", "TV Shows"),
			section("home", "Anime"),
		}}},
		selector: &fakeSelector{pick: "edge02.example.com"},
		client: &fakeVideoClient{edges: []edge.Candidate{
			{Host: "edge01.example.com"},
			{Host: "edge02.example.com"},
		}},
		out: &bytes.Buffer{},
	}
	h.orch = &Orchestrator{
		Prompter:   h.prompter,
		VideoLogin: h.videoLogin,
		MediaLogin: h.mediaLogin,
		Discoverer: h.discoverer,
		Selector:   h.selector,
		Out:        h.out,
		OnStage:    func(s Stage) { h.stages = append(h.stages, s) },
	}
	return h
}

func TestFullBootstrapHappyPath(t *testing.T) {
	h := newHarness()
	s := config.DefaultSettings()

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}

	wantStages := []Stage{StageStart, StageGeneralPrefs, StageVideoServiceLogin, StageEdgeDecision,
		StagePlexDecision, StagePlexLogin, StagePlexSectionSync, StageDone}
	if !slices.Equal(h.stages, wantStages) {
		t.Fatalf("stages = %v, want %v", h.stages, wantStages)
	}

	if s.VideoFolder != "/media/floatplane" || s.DownloadThreads != 4 || s.Floatplane.VideosToSearch != 10 {
		t.Fatalf("general prefs not stored: %+v", s)
	}
	if s.Floatplane.VideoResolution != 2160 || s.FileFormatting != "%channelTitle% - %videoTitle%" {
		t.Fatalf("resolution/format not stored: %+v", s)
	}
	if !s.Repeat.Enabled || s.Repeat.Interval != "01:00:00" {
		t.Fatalf("repeat not stored: %+v", s.Repeat)
	}
	if s.Floatplane.Edge != "edge02.example.com" || s.Floatplane.FindClosestEdge {
		t.Fatalf("edge decision not stored: %+v", s.Floatplane)
	}
	if !s.Plex.Enabled || s.Plex.Token != "plex-token" || !slices.Equal(s.Plex.SectionsToUpdate, []string{"home:TV Shows"}) {
		t.Fatalf("plex not stored: %+v", s.Plex)
	}
	if h.discoverer.gotToken != "plex-token" {
		t.Fatalf("discoverer token = %q", h.discoverer.gotToken)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("resulting settings invalid: %v", err)
	}
	if !strings.Contains(h.out.String(), `Closest edge server found is: "edge02.example.com"`) {
		t.Fatalf("missing edge confirmation in output:\n%s", h.out.String())
	}
}

func TestExtrasAreOverwrittenFromAnswer(t *testing.T) {
	h := newHarness()
	h.prompter.extras = []string{config.ExtraConsiderAllNonPartialDownloaded}
	s := config.DefaultSettings()

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}
	want := config.Extras{
		config.ExtraStripSubchannelPrefix:           false,
		config.ExtraDownloadArtwork:                 false,
		config.ExtraSaveNfo:                         false,
		config.ExtraConsiderAllNonPartialDownloaded: true,
	}
	if !reflect.DeepEqual(s.Extras, want) {
		t.Fatalf("extras = %v, want %v", s.Extras, want)
	}
}

func TestRepeatIntervalOnlyAskedWhenEnabled(t *testing.T) {
	h := newHarness()
	h.prompter.repeat = false
	s := config.DefaultSettings()

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}
	if slices.Contains(h.prompter.asked, "RepeatInterval") {
		t.Fatal("interval asked with repeat disabled")
	}
	if s.Repeat.Interval != config.DefaultRepeatInterval {
		t.Fatalf("interval changed: %q", s.Repeat.Interval)
	}
}

func TestDecliningPlexSkipsLoginAndDiscovery(t *testing.T) {
	h := newHarness()
	h.prompter.usePlex = false
	s := config.DefaultSettings()
	s.Plex.Enabled = true

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}
	if s.Plex.Enabled {
		t.Fatal("plex should be disabled")
	}
	if h.mediaLogin.calls != 0 || h.discoverer.calls != 0 {
		t.Fatalf("login=%d discover=%d, want 0", h.mediaLogin.calls, h.discoverer.calls)
	}
	if h.stages[len(h.stages)-1] != StageDone || slices.Contains(h.stages, StagePlexLogin) {
		t.Fatalf("stages = %v", h.stages)
	}
}

func TestZeroSectionsForcesDisable(t *testing.T) {
	h := newHarness()
	h.prompter.sections = nil
	s := config.DefaultSettings()

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}
	if s.Plex.Enabled {
		t.Fatal("plex should be force-disabled when nothing is selected")
	}
	if s.Plex.SectionsToUpdate == nil || len(s.Plex.SectionsToUpdate) != 0 {
		t.Fatalf("sections = %#v, want empty", s.Plex.SectionsToUpdate)
	}
	if !strings.Contains(h.out.String(), "Disabling plex integration") {
		t.Fatal("missing disable notice")
	}
}

func TestNoShowSectionsDisablesWithoutPrompt(t *testing.T) {
	h := newHarness()
	h.discoverer.discovery = plex.Discovery{}
	s := config.DefaultSettings()

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}
	if s.Plex.Enabled {
		t.Fatal("plex should be disabled")
	}
	if slices.Contains(h.prompter.asked, "PlexSections") {
		t.Fatal("sections prompted with no candidates")
	}
}

func TestVideoLoginFailureIsFatal(t *testing.T) {
	h := newHarness()
	loginErr := errors.New("bad password")
	h.videoLogin.err = loginErr
	s := config.DefaultSettings()

	err := h.orch.RunFullBootstrap(context.Background(), s, h.client)
	if !errors.Is(err, ErrAuthenticationFailed) || !errors.Is(err, loginErr) {
		t.Fatalf("expected auth failure wrapping cause, got %v", err)
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Service != "floatplane" {
		t.Fatalf("expected floatplane AuthError, got %v", err)
	}
	if slices.Contains(h.stages, StageEdgeDecision) || h.selector.calls != 0 {
		t.Fatalf("stages after failed login ran: %v", h.stages)
	}
}

func TestPlexLoginFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.mediaLogin.err = errors.New("denied")
	s := config.DefaultSettings()

	err := h.orch.RunFullBootstrap(context.Background(), s, h.client)
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Service != "plex" {
		t.Fatalf("expected plex AuthError, got %v", err)
	}
	if h.discoverer.calls != 0 {
		t.Fatal("discovery ran after failed login")
	}
}

func TestEdgeFailureKeepsPriorEdge(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *harness)
	}{
		{"no reachable candidate", func(h *harness) { h.selector.err = edge.ErrNoReachableCandidate }},
		{"edge list error", func(h *harness) { h.client.err = errors.New("503") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			tt.mutate(h)
			s := config.DefaultSettings()
			s.Floatplane.Edge = "edge-old.example.com"

			if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
				t.Fatalf("RunFullBootstrap: %v", err)
			}
			if s.Floatplane.Edge != "edge-old.example.com" {
				t.Fatalf("edge = %q, want prior edge", s.Floatplane.Edge)
			}
			if !strings.Contains(h.out.String(), "Warning:") {
				t.Fatal("expected a warning")
			}
			if !slices.Contains(h.prompter.asked, "AutoFindClosestEdge") {
				t.Fatal("auto-edge flag should still be asked")
			}
		})
	}
}

func TestSkippingProbeKeepsEdge(t *testing.T) {
	h := newHarness()
	h.prompter.probeNow = false
	s := config.DefaultSettings()
	s.Floatplane.Edge = "edge-old.example.com"

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}
	if h.selector.calls != 0 || s.Floatplane.Edge != "edge-old.example.com" {
		t.Fatalf("selector calls=%d edge=%q", h.selector.calls, s.Floatplane.Edge)
	}
}

func TestDiscoveryErrorIsReturned(t *testing.T) {
	h := newHarness()
	h.discoverer.err = plex.ErrNoServersReachable
	s := config.DefaultSettings()

	err := h.orch.RunFullBootstrap(context.Background(), s, h.client)
	if !errors.Is(err, plex.ErrNoServersReachable) {
		t.Fatalf("expected ErrNoServersReachable, got %v", err)
	}
}

func TestSectionDefaultsAreCurrentSelectionThatStillExists(t *testing.T) {
	h := newHarness()
	s := config.DefaultSettings()
	s.Plex.SectionsToUpdate = []string{"home:Anime", "gone:Old"}

	if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
		t.Fatalf("RunFullBootstrap: %v", err)
	}
	if !slices.Equal(h.prompter.gotSectionsDef, []string{"home:Anime"}) {
		t.Fatalf("defaults = %v", h.prompter.gotSectionsDef)
	}
}

func TestUnknownSectionAnswerRejected(t *testing.T) {
	h := newHarness()
	h.prompter.sections = []string{"elsewhere:Nope"}
	s := config.DefaultSettings()

	err := h.orch.RunFullBootstrap(context.Background(), s, h.client)
	if !errors.Is(err, config.ErrInvalidSetting) {
		t.Fatalf("expected ErrInvalidSetting, got %v", err)
	}
}

func TestInvalidGeneralAnswersRejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *fakePrompter)
	}{
		{"resolution", func(p *fakePrompter) { p.resolution = 480 }},
		{"format token", func(p *fakePrompter) { p.format = "%nope%" }},
		{"extra", func(p *fakePrompter) { p.extras = []string{"bogus"} }},
		{"threads", func(p *fakePrompter) { p.threads = 0 }},
		{"interval", func(p *fakePrompter) { p.interval = "later" }},
		{"folder", func(p *fakePrompter) { p.folder = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			tt.mutate(h.prompter)
			s := config.DefaultSettings()
			before := *s

			err := h.orch.RunFullBootstrap(context.Background(), s, h.client)
			if !errors.Is(err, config.ErrInvalidSetting) {
				t.Fatalf("expected ErrInvalidSetting, got %v", err)
			}
			if s.VideoFolder != before.VideoFolder || s.Floatplane.VideoResolution != before.Floatplane.VideoResolution {
				t.Fatal("general prefs partially applied")
			}
			if h.videoLogin.calls != 0 {
				t.Fatal("login ran after invalid answer")
			}
		})
	}
}

func TestPromptErrorStopsRun(t *testing.T) {
	h := newHarness()
	aborted := errors.New("aborted")
	h.prompter.err = aborted
	h.prompter.errOn = "UsePlex"
	s := config.DefaultSettings()

	err := h.orch.RunFullBootstrap(context.Background(), s, h.client)
	if !errors.Is(err, aborted) {
		t.Fatalf("expected prompt error, got %v", err)
	}
	if h.mediaLogin.calls != 0 {
		t.Fatal("plex login ran after aborted prompt")
	}
}

func TestFullBootstrapRepairsDirtySettings(t *testing.T) {
	tests := []struct {
		name  string
		dirty func(*config.Settings)
	}{
		{"invalid interval with repeat declined", func(s *config.Settings) { s.Repeat.Interval = "every five minutes" }},
		{"unknown extra", func(s *config.Settings) { s.Extras["legacyFlag"] = true }},
		{"nil extras", func(s *config.Settings) { s.Extras = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.prompter.repeat = false
			s := config.DefaultSettings()
			tt.dirty(s)

			if err := h.orch.RunFullBootstrap(context.Background(), s, h.client); err != nil {
				t.Fatalf("RunFullBootstrap: %v", err)
			}
			if err := s.Validate(); err != nil {
				t.Fatalf("resulting settings invalid: %v", err)
			}
			if _, ok := s.Extras["legacyFlag"]; ok {
				t.Fatalf("unknown extra survived: %v", s.Extras)
			}
		})
	}
}

func TestFullBootstrapIsIdempotent(t *testing.T) {
	first := config.DefaultSettings()
	if err := newHarness().orch.RunFullBootstrap(context.Background(), first, &fakeVideoClient{edges: []edge.Candidate{{Host: "edge02.example.com"}}}); err != nil {
		t.Fatal(err)
	}

	second := config.DefaultSettings()
	h := newHarness()
	h.client.edges = []edge.Candidate{{Host: "edge02.example.com"}}
	if err := h.orch.RunFullBootstrap(context.Background(), second, h.client); err != nil {
		t.Fatal(err)
	}
	if err := h.orch.RunFullBootstrap(context.Background(), second, h.client); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-running changed settings:\n%+v\n%+v", first, second)
	}
}

func TestCancelledContextStopsBeforeFirstStage(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.orch.RunFullBootstrap(ctx, config.DefaultSettings(), h.client)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(h.prompter.asked) != 0 {
		t.Fatalf("prompts ran: %v", h.prompter.asked)
	}
}

func TestEnsureMediaServerConfigured(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		h := newHarness()
		p := &config.PlexSettings{SectionsToUpdate: []string{}}
		if err := h.orch.EnsureMediaServerConfigured(context.Background(), p, true); err != nil {
			t.Fatal(err)
		}
		if h.mediaLogin.calls != 0 || h.discoverer.calls != 0 || len(h.prompter.asked) != 0 {
			t.Fatal("disabled integration triggered work")
		}
	})

	t.Run("fully configured is untouched", func(t *testing.T) {
		h := newHarness()
		p := &config.PlexSettings{Enabled: true, Token: "t", SectionsToUpdate: []string{"home:TV Shows"}}
		before := *p
		if err := h.orch.EnsureMediaServerConfigured(context.Background(), p, true); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(*p, before) || len(h.prompter.asked) != 0 || h.out.Len() != 0 {
			t.Fatalf("configured integration changed: %+v", p)
		}
	})

	t.Run("missing token logs in then selects", func(t *testing.T) {
		h := newHarness()
		p := &config.PlexSettings{Enabled: true, SectionsToUpdate: []string{}}
		if err := h.orch.EnsureMediaServerConfigured(context.Background(), p, true); err != nil {
			t.Fatal(err)
		}
		if p.Token != "plex-token" || !slices.Equal(p.SectionsToUpdate, []string{"home:TV Shows"}) {
			t.Fatalf("plex = %+v", p)
		}
		out := h.out.String()
		tokenAt := strings.Index(out, "Missing plex token!")
		sectionsAt := strings.Index(out, "No plex sections specified to update!")
		if tokenAt < 0 || sectionsAt < tokenAt {
			t.Fatalf("expected both notices in order, got:\n%s", out)
		}
	})

	t.Run("missing token keeps existing sections", func(t *testing.T) {
		h := newHarness()
		p := &config.PlexSettings{Enabled: true, SectionsToUpdate: []string{"home:Anime"}}
		if err := h.orch.EnsureMediaServerConfigured(context.Background(), p, false); err != nil {
			t.Fatal(err)
		}
		if p.Token != "plex-token" || h.discoverer.calls != 0 {
			t.Fatalf("plex = %+v, discover calls %d", p, h.discoverer.calls)
		}
		if h.out.Len() != 0 {
			t.Fatalf("no notices expected without promptIfMissing, got %q", h.out.String())
		}
	})

	t.Run("missing sections uses stored token", func(t *testing.T) {
		h := newHarness()
		p := &config.PlexSettings{Enabled: true, Token: "stored", SectionsToUpdate: []string{}}
		if err := h.orch.EnsureMediaServerConfigured(context.Background(), p, true); err != nil {
			t.Fatal(err)
		}
		if h.mediaLogin.calls != 0 || h.discoverer.gotToken != "stored" {
			t.Fatalf("login calls %d, token %q", h.mediaLogin.calls, h.discoverer.gotToken)
		}
		if !strings.Contains(h.out.String(), "No plex sections specified to update!") {
			t.Fatal("missing sections notice")
		}
	})

	t.Run("selecting nothing disables", func(t *testing.T) {
		h := newHarness()
		h.prompter.sections = []string{}
		p := &config.PlexSettings{Enabled: true, Token: "stored", SectionsToUpdate: []string{}}
		if err := h.orch.EnsureMediaServerConfigured(context.Background(), p, false); err != nil {
			t.Fatal(err)
		}
		if p.Enabled {
			t.Fatal("expected forced disable")
		}
	})
}

func TestSyncMediaServerSectionsReselects(t *testing.T) {
	h := newHarness()
	h.prompter.sections = []string{"home:Anime"}
	p := &config.PlexSettings{Enabled: true, Token: "stored", SectionsToUpdate: []string{"home:TV Shows"}}

	if err := h.orch.SyncMediaServerSections(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(p.SectionsToUpdate, []string{"home:Anime"}) {
		t.Fatalf("sections = %v", p.SectionsToUpdate)
	}
	if !slices.Equal(h.prompter.gotSectionsDef, []string{"home:TV Shows"}) {
		t.Fatalf("defaults = %v", h.prompter.gotSectionsDef)
	}
}

func TestStageString(t *testing.T) {
	if StagePlexSectionSync.String() != "plex-section-sync" || Stage(99).String() != "unknown" {
		t.Fatal("unexpected stage names")
	}
}
