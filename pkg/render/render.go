package render

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noesislabs/noesis-bridge/pkg/types"
)

// Templates maps event kind → language → template string. Placeholders
// use curly braces: {ts} {actor} {location} {raw} {verb} {from_loc}
// {to_loc}.
type Templates map[string]map[string]string

// IdentityMap resolves dbrefs to display names for actors and locations.
type IdentityMap struct {
	Actors    map[string]string `json:"actors"`
	Locations map[string]string `json:"locations"`
}

// Renderer formats journal events as human-readable lines.
type Renderer struct {
	language   string
	templates  Templates
	identities IdentityMap
}

// NewRenderer builds a renderer from loaded templates and identities.
func NewRenderer(language string, tpl Templates, ids IdentityMap) *Renderer {
	return &Renderer{
		language:   strings.ToLower(language),
		templates:  tpl,
		identities: ids,
	}
}

// LoadTemplates reads a YAML template file.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates %s: %w", path, err)
	}
	tpl := Templates{}
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse templates %s: %w", path, err)
	}
	return tpl, nil
}

// LoadIdentityMap reads a JSON identity map file.
func LoadIdentityMap(path string) (IdentityMap, error) {
	ids := IdentityMap{}
	data, err := os.ReadFile(path)
	if err != nil {
		return ids, fmt.Errorf("failed to read identity map %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return ids, fmt.Errorf("failed to parse identity map %s: %w", path, err)
	}
	return ids, nil
}

// Render formats one event. Unknown kinds render to ("", false) and are
// skipped by the follower.
func (r *Renderer) Render(ev *types.Event) (string, bool) {
	switch ev.Type {
	case types.EventSay:
		tpl := r.template("SAY", "{ts} {actor} {verb}: {raw}  @ {location}")
		verb := ev.Content["verb"]
		if verb == "" {
			verb = defaultVerb(r.language)
		}
		return expand(tpl, map[string]string{
			"ts":       ev.TsUTC,
			"actor":    r.actorName(ev.Actor.DBRef),
			"location": r.locationName(ev.Location.DBRef),
			"raw":      ev.Content["raw"],
			"verb":     verb,
		}), true

	case types.EventMove:
		tpl := r.template("MOVE", "{ts} {actor} moves {from_loc} -> {to_loc}")
		return expand(tpl, map[string]string{
			"ts":       ev.TsUTC,
			"actor":    r.actorName(ev.Actor.DBRef),
			"from_loc": r.locationName(ev.Content["from"]),
			"to_loc":   r.locationName(ev.Content["to"]),
		}), true
	}
	return "", false
}

// template picks the configured template for kind in the renderer's
// language, falling back to English and then a built-in default.
func (r *Renderer) template(kind, fallback string) string {
	if byLang, ok := r.templates[kind]; ok {
		if tpl := byLang[r.language]; tpl != "" {
			return tpl
		}
		if tpl := byLang["en"]; tpl != "" {
			return tpl
		}
	}
	return fallback
}

func (r *Renderer) actorName(dbref string) string {
	if name, ok := r.identities.Actors[dbref]; ok {
		return name
	}
	return dbref
}

func (r *Renderer) locationName(dbref string) string {
	if name, ok := r.identities.Locations[dbref]; ok {
		return name
	}
	return dbref
}

func defaultVerb(lang string) string {
	if lang == "pl" {
		return "mówi"
	}
	return "says"
}

func expand(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
