// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report summarizes a published bot catalog: how many bots carry a
// description, limits, an example and a usable link.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/bot-catalog/pkg/types"
)

const (
	maxMissingLinks = 10
	maxSamples      = 5
	truncateRunes   = 120
)

// Alias lists for the fields the converters have emitted over time.
var (
	modelKeys   = []string{"النموذج", "النماذج", "model", "models"}
	aboutKeys   = []string{"نبذة", "الوصف", "about", "description"}
	limitKeys   = []string{"حدود", "الحدود", "القيود", "limits", "constraints"}
	exampleKeys = []string{"مثال", "أمثلة", "الأمثلة", "example", "examples"}
	urlKeys     = []string{"الرابط", "رابط", "الرابط المباشر", "url", "link", "links", "primaryUrl", "primaryurl", "directurl"}
	linkModels  = []string{"4O", "4o", "4o-mini", "gpt-4o", "gpt4o", "5", "gpt-5", "gpt5"}
)

// Sample is a short excerpt of one bot.
type Sample struct {
	Title   string `json:"botTitle" yaml:"botTitle"`
	About   string `json:"about,omitempty" yaml:"about,omitempty"`
	Limits  string `json:"limits,omitempty" yaml:"limits,omitempty"`
	Example string `json:"example,omitempty" yaml:"example,omitempty"`
	Link    string `json:"link" yaml:"link"`
}

// Summary holds the catalog statistics.
type Summary struct {
	Path         string   `json:"path" yaml:"path"`
	Packages     int      `json:"packages" yaml:"packages"`
	Categories   int      `json:"categories" yaml:"categories"`
	Bots         int      `json:"bots" yaml:"bots"`
	WithAbout    int      `json:"with_about" yaml:"with_about"`
	WithLimits   int      `json:"with_limits" yaml:"with_limits"`
	WithExample  int      `json:"with_example" yaml:"with_example"`
	WithLink     int      `json:"with_link" yaml:"with_link"`
	MissingLinks []string `json:"missing_links,omitempty" yaml:"missing_links,omitempty"`
	Samples      []Sample `json:"samples,omitempty" yaml:"samples,omitempty"`
}

// WithoutLink returns the number of bots that have no usable link.
func (s Summary) WithoutLink() int {
	return s.Bots - s.WithLink
}

// Load reads and decodes the catalog at path.
func Load(path string) (types.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	var c types.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return types.Catalog{}, fmt.Errorf("decoding catalog %s: %w", path, err)
	}
	return c, nil
}

// Summarize walks every bot in c.
func Summarize(c types.Catalog) Summary {
	var s Summary
	s.Packages = len(c.Packages)
	for _, pkg := range c.Packages {
		s.Categories += len(pkg.Categories)
		for _, cat := range pkg.Categories {
			for _, bot := range cat.Bots {
				s.add(bot)
			}
		}
	}
	return s
}

func (s *Summary) add(bot types.Bot) {
	s.Bots++

	about := pickText(bot, aboutKeys)
	limits := pickText(bot, limitKeys)
	example := pickText(bot, exampleKeys)
	link := pickLink(bot, pickModels(bot))
	title := NormalizeTitle(bot.Title())

	if about != "" {
		s.WithAbout++
	}
	if limits != "" {
		s.WithLimits++
	}
	if example != "" {
		s.WithExample++
	}
	if link != "" {
		s.WithLink++
	} else if len(s.MissingLinks) < maxMissingLinks {
		s.MissingLinks = append(s.MissingLinks, title)
	}

	if len(s.Samples) < maxSamples && (about != "" || limits != "" || example != "") {
		if link == "" {
			link = "(missing)"
		}
		s.Samples = append(s.Samples, Sample{
			Title:   title,
			About:   Truncate(about, truncateRunes),
			Limits:  Truncate(limits, truncateRunes),
			Example: Truncate(example, truncateRunes),
			Link:    link,
		})
	}
}

// NormalizeTitle composes title to NFC and drops bidi marks the Word
// documents carry around Arabic text.
func NormalizeTitle(title string) string {
	title = strings.NewReplacer("\u200f", "", "\u200e", "").Replace(title)
	return strings.TrimSpace(norm.NFC.String(title))
}

// Truncate flattens newlines and cuts s to n runes, appending "...".
func Truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// pickValue returns the first non-empty string or non-empty map found under
// keys, or nil.
func pickValue(bot types.Bot, keys []string) any {
	for _, k := range keys {
		switch v := bot.Get(k).(type) {
		case string:
			if t := strings.TrimSpace(v); t != "" {
				return t
			}
		case map[string]any:
			if len(v) > 0 {
				return v
			}
		}
	}
	return nil
}

func pickText(bot types.Bot, keys []string) string {
	s, _ := pickValue(bot, keys).(string)
	return s
}

// pickModels returns the model-to-link map of bot. A bare string is taken as
// the 4O link. Without a model field, the first field in document order
// holding a map with http links is used.
func pickModels(bot types.Bot) map[string]string {
	switch raw := pickValue(bot, modelKeys).(type) {
	case map[string]any:
		if m := cleanLinks(raw); len(m) > 0 {
			return m
		}
	case string:
		return map[string]string{"4O": raw}
	}

	for _, k := range bot.Keys {
		m, ok := bot.Get(k).(map[string]any)
		if !ok || !hasHTTPValue(m) {
			continue
		}
		if cleaned := cleanLinks(m); len(cleaned) > 0 {
			return cleaned
		}
	}
	return map[string]string{}
}

func cleanLinks(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				out[k] = t
			}
		}
	}
	return out
}

func hasHTTPValue(m map[string]any) bool {
	for _, v := range m {
		if s, ok := v.(string); ok && strings.HasPrefix(strings.TrimSpace(s), "http") {
			return true
		}
	}
	return false
}

func pickLink(bot types.Bot, models map[string]string) string {
	if direct := pickText(bot, urlKeys); direct != "" {
		return direct
	}
	for _, k := range linkModels {
		if v := strings.TrimSpace(models[k]); v != "" {
			return v
		}
	}
	return ""
}
