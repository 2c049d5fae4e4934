package bootstrap

// Stage is a step of the bootstrap state machine.
type Stage int

const (
	StageStart Stage = iota
	StageGeneralPrefs
	StageVideoServiceLogin
	StageEdgeDecision
	StagePlexDecision
	StagePlexLogin
	StagePlexSectionSync
	StageDone
)

var stageNames = map[Stage]string{
	StageStart:             "start",
	StageGeneralPrefs:      "general-prefs",
	StageVideoServiceLogin: "video-service-login",
	StageEdgeDecision:      "edge-decision",
	StagePlexDecision:      "plex-decision",
	StagePlexLogin:         "plex-login",
	StagePlexSectionSync:   "plex-section-sync",
	StageDone:              "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}
