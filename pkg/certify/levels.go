// Package certify maps conformance run results to certification levels
// for the Certline Certified badge program.
package certify

// Level is an achievable certification level.
type Level string

const (
	LevelBronze   Level = "bronze"
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelPlatinum Level = "platinum"
)

// LevelDefinition is the complete criteria for one certification level.
// All thresholds and required protocol lists are publicly documented
// here. There are no secret criteria.
type LevelDefinition struct {
	Level             Level
	MinimumScorePct   float64
	RequiredProtocols []string
	BadgeColor        string
	DisplayName       string
	Description       string
}

var levelDefinitions = map[Level]LevelDefinition{
	LevelBronze: {
		Level:             LevelBronze,
		MinimumScorePct:   60.0,
		RequiredProtocols: []string{"atp"},
		BadgeColor:        "#CD7F32",
		DisplayName:       "Certline Certified — Bronze (Self-Assessed)",
		Description: "Implementation satisfies at least 60% of all conformance checks " +
			"and covers the Agent Trust Protocol (ATP) requirements.",
	},
	LevelSilver: {
		Level:             LevelSilver,
		MinimumScorePct:   75.0,
		RequiredProtocols: []string{"atp", "aeap", "aoap"},
		BadgeColor:        "#C0C0C0",
		DisplayName:       "Certline Certified — Silver (Self-Assessed)",
		Description: "Implementation satisfies at least 75% of all conformance checks " +
			"and covers ATP, AEAP, and AOAP requirements.",
	},
	LevelGold: {
		Level:             LevelGold,
		MinimumScorePct:   90.0,
		RequiredProtocols: []string{"atp", "aip", "aeap", "amgp", "aoap"},
		BadgeColor:        "#FFD700",
		DisplayName:       "Certline Certified — Gold (Self-Assessed)",
		Description: "Implementation satisfies at least 90% of all conformance checks " +
			"and covers ATP, AIP, AEAP, AMGP, and AOAP requirements.",
	},
	LevelPlatinum: {
		Level:             LevelPlatinum,
		MinimumScorePct:   95.0,
		RequiredProtocols: []string{"atp", "aip", "asp", "aeap", "amgp", "aoap", "alcp"},
		BadgeColor:        "#E5E4E2",
		DisplayName:       "Certline Certified — Platinum (Self-Assessed)",
		Description: "Implementation satisfies at least 95% of all conformance checks " +
			"and covers all seven governance protocols.",
	},
}

// LevelsDescending lists the level definitions from highest to lowest,
// the order the scorer evaluates them in.
func LevelsDescending() []LevelDefinition {
	return []LevelDefinition{
		levelDefinitions[LevelPlatinum],
		levelDefinitions[LevelGold],
		levelDefinitions[LevelSilver],
		levelDefinitions[LevelBronze],
	}
}

// AllProtocolIDs lists every recognised protocol identifier, including
// the reserved asp and alcp protocols that have no runnable suite yet.
func AllProtocolIDs() []string {
	return []string{"atp", "aip", "asp", "aeap", "amgp", "aoap", "alcp"}
}

// Definition returns the criteria for a given level. The second return
// is false for an unrecognised level.
func Definition(level Level) (LevelDefinition, bool) {
	def, ok := levelDefinitions[level]
	return def, ok
}
