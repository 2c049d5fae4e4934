package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Resolutions lists the video resolutions the video service offers.
var Resolutions = []int{360, 720, 1080, 2160}

// FileFormattingTokens are the placeholders a filename format may use.
var FileFormattingTokens = []string{
	"%channelTitle%",
	"%episodeNumber%",
	"%year%",
	"%month%",
	"%day%",
	"%hour%",
	"%minute%",
	"%second%",
	"%videoTitle%",
}

// Extra keys. KnownExtras is the full universe; answers outside it are
// rejected by the prompt layer.
const (
	ExtraStripSubchannelPrefix           = "stripSubchannelPrefix"
	ExtraDownloadArtwork                 = "downloadArtwork"
	ExtraSaveNfo                         = "saveNfo"
	ExtraConsiderAllNonPartialDownloaded = "considerAllNonPartialDownloaded"
)

var KnownExtras = []string{
	ExtraStripSubchannelPrefix,
	ExtraDownloadArtwork,
	ExtraSaveNfo,
	ExtraConsiderAllNonPartialDownloaded,
}

// Default values
const (
	DefaultVideoFolder     = "./videos/"
	DefaultDownloadThreads = -1
	DefaultResolution      = 1080
	DefaultVideosToSearch  = 5
	DefaultFileFormatting  = "%channelTitle%/%channelTitle% - S%year%E%month%%day%%hour%%minute%%second% - %videoTitle%"
	DefaultRepeatInterval  = "00:05:00"
)

var (
	ErrInvalidSetting = errors.New("invalid setting")

	tokenPattern    = regexp.MustCompile(`%[A-Za-z]+%`)
	intervalPattern = regexp.MustCompile(`^\d{2}:[0-5]\d:[0-5]\d$`)
)

// FloatplaneSettings holds video-service preferences.
type FloatplaneSettings struct {
	FindClosestEdge bool   `json:"findClosestEdge"`
	VideoResolution int    `json:"videoResolution"`
	Edge            string `json:"edge"`
	VideosToSearch  int    `json:"videosToSearch"`
}

// PlexSettings holds the media-server integration. SectionsToUpdate carries
// DiscoveredSection IDs ("<server>:<section title>").
type PlexSettings struct {
	SectionsToUpdate []string `json:"sectionsToUpdate"`
	Enabled          bool     `json:"enabled"`
	Token            string   `json:"token"`
}

// RepeatSettings controls re-running the download check on an interval.
type RepeatSettings struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval"`
}

// Extras are optional behaviors toggled by name.
type Extras map[string]bool

// Enabled returns the enabled extra keys in KnownExtras order.
func (e Extras) Enabled() []string {
	var keys []string
	for _, key := range KnownExtras {
		if e[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

// Settings is the configuration tree threaded through the bootstrap.
type Settings struct {
	RunQuickstartPrompts  bool               `json:"runQuickstartPrompts"`
	VideoFolder           string             `json:"videoFolder"`
	DownloadThreads       int                `json:"downloadThreads"`
	Floatplane            FloatplaneSettings `json:"floatplane"`
	FileFormattingOptions []string           `json:"_fileFormattingOPTIONS"`
	FileFormatting        string             `json:"fileFormatting"`
	Repeat                RepeatSettings     `json:"repeat"`
	Extras                Extras             `json:"extras"`
	Plex                  PlexSettings       `json:"plex"`
}

// DefaultSettings returns a structurally complete settings tree.
func DefaultSettings() *Settings {
	return &Settings{
		RunQuickstartPrompts: true,
		VideoFolder:          DefaultVideoFolder,
		DownloadThreads:      DefaultDownloadThreads,
		Floatplane: FloatplaneSettings{
			FindClosestEdge: true,
			VideoResolution: DefaultResolution,
			Edge:            "",
			VideosToSearch:  DefaultVideosToSearch,
		},
		FileFormattingOptions: slices.Clone(FileFormattingTokens),
		FileFormatting:        DefaultFileFormatting,
		Repeat: RepeatSettings{
			Enabled:  false,
			Interval: DefaultRepeatInterval,
		},
		Extras: Extras{
			ExtraStripSubchannelPrefix:           true,
			ExtraDownloadArtwork:                 true,
			ExtraSaveNfo:                         true,
			ExtraConsiderAllNonPartialDownloaded: false,
		},
		Plex: PlexSettings{
			SectionsToUpdate: []string{},
			Enabled:          false,
			Token:            "",
		},
	}
}

// normalize restores leaves a decoded file may have nulled or dropped.
func (s *Settings) normalize() {
	defaults := DefaultSettings()
	if s.Extras == nil {
		s.Extras = Extras{}
	}
	for _, key := range KnownExtras {
		if _, ok := s.Extras[key]; !ok {
			s.Extras[key] = defaults.Extras[key]
		}
	}
	// Unknown keys are dropped; KnownExtras is the universe.
	for key := range s.Extras {
		if !slices.Contains(KnownExtras, key) {
			delete(s.Extras, key)
		}
	}
	if s.Plex.SectionsToUpdate == nil {
		s.Plex.SectionsToUpdate = []string{}
	}
	// The option list is derived, never user data.
	s.FileFormattingOptions = slices.Clone(FileFormattingTokens)
}

// IsValidResolution reports whether res is an offered resolution.
func IsValidResolution(res int) bool {
	return slices.Contains(Resolutions, res)
}

// ValidateFileFormatting checks that every %token% in format is in tokens.
func ValidateFileFormatting(format string, tokens []string) error {
	if strings.TrimSpace(format) == "" {
		return fmt.Errorf("%w: file formatting is empty", ErrInvalidSetting)
	}
	for _, token := range tokenPattern.FindAllString(format, -1) {
		if !slices.Contains(tokens, token) {
			return fmt.Errorf("%w: unknown file formatting token %s", ErrInvalidSetting, token)
		}
	}
	return nil
}

// ValidateRepeatInterval checks the HH:MM:SS form.
func ValidateRepeatInterval(interval string) error {
	if !intervalPattern.MatchString(interval) {
		return fmt.Errorf("%w: repeat interval %q is not HH:MM:SS", ErrInvalidSetting, interval)
	}
	return nil
}

// ValidateDownloadThreads accepts -1 (unlimited) or a positive count.
func ValidateDownloadThreads(threads int) error {
	if threads == -1 || threads >= 1 {
		return nil
	}
	return fmt.Errorf("%w: download threads must be -1 or >= 1, got %d", ErrInvalidSetting, threads)
}

// Validate reports the first leaf that is outside its valid set.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.VideoFolder) == "" {
		return fmt.Errorf("%w: video folder is empty", ErrInvalidSetting)
	}
	if err := ValidateDownloadThreads(s.DownloadThreads); err != nil {
		return err
	}
	if !IsValidResolution(s.Floatplane.VideoResolution) {
		return fmt.Errorf("%w: resolution %d is not one of %v", ErrInvalidSetting, s.Floatplane.VideoResolution, Resolutions)
	}
	if s.Floatplane.VideosToSearch < 0 {
		return fmt.Errorf("%w: videos to search must be >= 0", ErrInvalidSetting)
	}
	if err := ValidateFileFormatting(s.FileFormatting, FileFormattingTokens); err != nil {
		return err
	}
	if err := ValidateRepeatInterval(s.Repeat.Interval); err != nil {
		return err
	}
	for _, key := range KnownExtras {
		if _, ok := s.Extras[key]; !ok {
			return fmt.Errorf("%w: extra %s is missing", ErrInvalidSetting, key)
		}
	}
	if len(s.Extras) != len(KnownExtras) {
		return fmt.Errorf("%w: unknown extras present", ErrInvalidSetting)
	}
	if s.Plex.Enabled && len(s.Plex.SectionsToUpdate) == 0 {
		return fmt.Errorf("%w: plex is enabled without sections", ErrInvalidSetting)
	}
	return nil
}
