package prompt

import (
	"errors"
	"floatfetch/internal/config"
	"floatfetch/internal/plex"
	"floatfetch/internal/utils"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrAborted is returned when the operator interrupts a prompt.
var ErrAborted = errors.New("prompt aborted")

// Survey asks questions on the terminal.
type Survey struct {
	opts []survey.AskOpt
}

// New returns a terminal prompter. opts are passed to every question.
func New(opts ...survey.AskOpt) *Survey {
	return &Survey{opts: opts}
}

func (s *Survey) ask(p survey.Prompt, response any, validators ...survey.Validator) error {
	opts := slices.Clone(s.opts)
	for _, v := range validators {
		opts = append(opts, survey.WithValidator(v))
	}
	if err := survey.AskOne(p, response, opts...); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return ErrAborted
		}
		return err
	}
	return nil
}

func (s *Survey) askInt(message, help string, current int, validate func(int) error) (int, error) {
	var answer string
	err := s.ask(&survey.Input{
		Message: message,
		Default: strconv.Itoa(current),
		Help:    help,
	}, &answer, intValidator(validate))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(answer))
}

func (s *Survey) confirm(message string, current bool) (bool, error) {
	answer := current
	err := s.ask(&survey.Confirm{Message: message, Default: current}, &answer)
	return answer, err
}

// intValidator parses the answer as an int and applies validate.
func intValidator(validate func(int) error) survey.Validator {
	return func(ans any) error {
		str, ok := ans.(string)
		if !ok {
			return fmt.Errorf("expected text, got %T", ans)
		}
		n, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			return fmt.Errorf("%q is not a whole number", str)
		}
		if validate != nil {
			return validate(n)
		}
		return nil
	}
}

// stringValidator applies validate to a trimmed text answer.
func stringValidator(validate func(string) error) survey.Validator {
	return func(ans any) error {
		str, ok := ans.(string)
		if !ok {
			return fmt.Errorf("expected text, got %T", ans)
		}
		return validate(strings.TrimSpace(str))
	}
}

func nonNegative(n int) error {
	if n < 0 {
		return errors.New("must be 0 or more")
	}
	return nil
}

func nonEmpty(s string) error {
	if s == "" {
		return errors.New("a value is required")
	}
	return nil
}

func (s *Survey) VideoFolder(current string) (string, error) {
	var answer string
	err := s.ask(&survey.Input{
		Message: "Videos folder:",
		Default: current,
		Help:    "Absolute or relative path where downloaded videos are stored.",
	}, &answer, stringValidator(nonEmpty))
	return utils.ExpandHome(strings.TrimSpace(answer)), err
}

func (s *Survey) VideosToSearch(current int) (int, error) {
	return s.askInt("Number of latest videos to search through for new downloads:",
		"How far back each channel is checked on every run.", current, nonNegative)
}

func (s *Survey) DownloadThreads(current int) (int, error) {
	return s.askInt("Number of videos to download at once (-1 for unlimited):",
		"", current, config.ValidateDownloadThreads)
}

func (s *Survey) VideoResolution(current int, options []int) (int, error) {
	labels := make([]string, 0, len(options))
	for _, res := range options {
		labels = append(labels, resolutionLabel(res))
	}
	sel := &survey.Select{
		Message: "Video resolution to download:",
		Options: labels,
	}
	// survey rejects a default that is not one of the options.
	if slices.Contains(options, current) {
		sel.Default = resolutionLabel(current)
	}
	var answer string
	err := s.ask(sel, &answer)
	if err != nil {
		return 0, err
	}
	return parseResolution(answer)
}

func resolutionLabel(res int) string {
	return fmt.Sprintf("%dp", res)
}

func parseResolution(label string) (int, error) {
	return strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(label), "p"))
}

func (s *Survey) FileFormatting(current string, tokens []string) (string, error) {
	var answer string
	err := s.ask(&survey.Input{
		Message: "Video filename format:",
		Default: current,
		Help:    "Available tokens: " + strings.Join(tokens, " "),
	}, &answer, stringValidator(func(v string) error {
		return config.ValidateFileFormatting(v, tokens)
	}))
	return strings.TrimSpace(answer), err
}

func (s *Survey) Extras(current config.Extras, known []string) ([]string, error) {
	var answer []string
	err := s.ask(&survey.MultiSelect{
		Message: "Enable/Disable extra features:",
		Options: known,
		Default: current.Enabled(),
	}, &answer)
	return answer, err
}

func (s *Survey) Repeat(current bool) (bool, error) {
	return s.confirm("Automatically re-check for new videos on an interval?", current)
}

func (s *Survey) RepeatInterval(current string) (string, error) {
	var answer string
	err := s.ask(&survey.Input{
		Message: "Re-check interval (HH:MM:SS):",
		Default: current,
	}, &answer, stringValidator(config.ValidateRepeatInterval))
	return strings.TrimSpace(answer), err
}

func (s *Survey) FindClosestEdgeNow() (bool, error) {
	return s.confirm("Find the closest edge server now?", true)
}

func (s *Survey) AutoFindClosestEdge(current bool) (bool, error) {
	return s.confirm("Automatically find the closest edge server on every run?", current)
}

func (s *Survey) UsePlex(current bool) (bool, error) {
	return s.confirm("Enable plex integration?", current)
}

func (s *Survey) PlexSections(current []string, candidates []plex.DiscoveredSection) ([]string, error) {
	labels, byLabel := sectionOptions(candidates)
	defaults := sectionDefaults(labels, candidates, current)

	var answer []string
	err := s.ask(&survey.MultiSelect{
		Message: "Plex sections to refresh after downloading:",
		Options: labels,
		Default: defaults,
	}, &answer)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(answer))
	for _, label := range answer {
		ids = append(ids, byLabel[label])
	}
	return ids, nil
}

// sectionOptions returns prompt labels in discovery order and a label to ID map.
func sectionOptions(candidates []plex.DiscoveredSection) ([]string, map[string]string) {
	labels := make([]string, 0, len(candidates))
	byLabel := make(map[string]string, len(candidates))
	for _, c := range candidates {
		label := c.Label()
		if _, dup := byLabel[label]; dup {
			label = fmt.Sprintf("%s [%s]", label, c.Section.Key)
		}
		labels = append(labels, label)
		byLabel[label] = c.ID()
	}
	return labels, byLabel
}

// sectionDefaults returns the labels of candidates whose IDs are in current.
// labels must come from sectionOptions for the same candidates.
func sectionDefaults(labels []string, candidates []plex.DiscoveredSection, current []string) []string {
	defaults := make([]string, 0, len(current))
	for i, c := range candidates {
		if slices.Contains(current, c.ID()) {
			defaults = append(defaults, labels[i])
		}
	}
	return defaults
}

func (s *Survey) Username(service string) (string, error) {
	var answer string
	err := s.ask(&survey.Input{Message: service + " username:"}, &answer, survey.Required)
	return strings.TrimSpace(answer), err
}

func (s *Survey) Password(service string) (string, error) {
	var answer string
	err := s.ask(&survey.Password{Message: service + " password:"}, &answer, survey.Required)
	return answer, err
}

func (s *Survey) TwoFactorToken(service string) (string, error) {
	var answer string
	err := s.ask(&survey.Input{Message: service + " 2FA code:"}, &answer, survey.Required)
	return strings.TrimSpace(answer), err
}
