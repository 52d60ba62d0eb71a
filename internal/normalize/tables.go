package normalize

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/model"
)

// ErrUnmappedModel means a source reported a model name with no mapping. It
// signals a missing table entry rather than bad upstream data.
var ErrUnmappedModel = eris.New("normalize: unmapped model name")

// modelNames maps each source's raw model identifier to the canonical model key.
var modelNames = map[model.Source]map[string]string{
	model.SourceAutolist: {
		"patriot":           "patriot",
		"compass":           "compass",
		"cherokee":          "cherokee",
		"renegade":          "renegade",
		"liberty":           "liberty",
		"grandcherokee":     "grand_cherokee",
		"wrangler":          "wrangler",
		"wranglerunlimited": "wrangler",
	},
}

type colorGroup struct {
	name    string
	matches []string
}

// colorGroups is ordered; when several groups match, the last one wins.
var colorGroups = []colorGroup{
	{"black", []string{"black"}},
	{"white", []string{"white"}},
	{"silver", []string{"silver", "glacier"}},
	{"gray", []string{"gray", "granite", "rhino", "anvil", "maximum steel", "charcoal"}},
	{"red", []string{"red", "burgundy", "maroon"}},
	{"blue", []string{"blue", "winter chill"}},
	{"green", []string{"green"}},
	{"orange", []string{"orange"}},
	{"yellow", []string{"yellow"}},
	{"tan", []string{"tan", "beige", "cashmere", "mojave"}},
	{"brownstone", []string{"brownstone", "pewter"}},
	{"brown", []string{"rugged brown"}},
}

// ModelName maps a source's raw model identifier to the canonical model key.
// Unknown sources and unknown names both return ErrUnmappedModel.
func ModelName(src model.Source, raw string) (string, error) {
	names, ok := modelNames[src]
	if !ok {
		return "", eris.Wrapf(ErrUnmappedModel, "source %s has no model table", src)
	}
	name, ok := names[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", eris.Wrapf(ErrUnmappedModel, "source %s model %q", src, raw)
	}
	return name, nil
}

// Drivetrain canonicalises a drivetrain description, falling back to the
// lower-cased input.
func Drivetrain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "4x4", "four wheel drive", "4wd":
		return "4x4"
	case "fwd", "front wheel drive":
		return "fwd"
	case "rwd", "rear wheel drive":
		return "rwd"
	case "2wd", "4x2":
		return "2wd"
	default:
		return s
	}
}

// Color reduces a marketing color name ("Billet Silver Metallic") to a base
// color, falling back to the lower-cased input.
func Color(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	parsed := ""
	for _, g := range colorGroups {
		for _, m := range g.matches {
			if strings.Contains(s, m) {
				parsed = g.name
				break
			}
		}
	}
	if parsed == "" {
		return s
	}
	return parsed
}
