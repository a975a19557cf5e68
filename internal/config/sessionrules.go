package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantlab/quantlab/internal/calendar"
	"github.com/quantlab/quantlab/internal/hashing"
)

// sessionRuleSpec is the YAML shape of one per-MIC close rule.
type sessionRuleSpec struct {
	RegularCloseLocal string `yaml:"regular_close_local"` // "HH:MM"
	ValidFrom         string `yaml:"valid_from"`
	ValidTo           string `yaml:"valid_to"`
}

// sessionRulesFile is the YAML shape of a session-rules table.
type sessionRulesFile struct {
	Version string                       `yaml:"version"`
	Rules   map[string][]sessionRuleSpec `yaml:"rules"`
}

// LoadSessionRules reads a per-MIC session-rules YAML file into a
// calendar.SessionRules table and returns its content hash, the
// sessionrules_version identity the registry records.
func LoadSessionRules(path string) (*calendar.SessionRules, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("config: read session rules: %w", err)
	}
	var file sessionRulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("config: parse session rules: %w", err)
	}

	rules := &calendar.SessionRules{
		Version: file.Version,
		Entries: make(map[calendar.MIC][]calendar.SessionRuleEntry, len(file.Rules)),
	}
	for mic, specs := range file.Rules {
		for _, spec := range specs {
			off, err := parseLocalClock(spec.RegularCloseLocal)
			if err != nil {
				return nil, "", fmt.Errorf("config: session rules for %s: %w", mic, err)
			}
			rules.Entries[calendar.MIC(mic)] = append(rules.Entries[calendar.MIC(mic)], calendar.SessionRuleEntry{
				MIC:               calendar.MIC(mic),
				RegularCloseLocal: off,
				ValidFrom:         spec.ValidFrom,
				ValidTo:           spec.ValidTo,
			})
		}
	}

	hash, err := hashSessionRules(file)
	if err != nil {
		return nil, "", err
	}
	return rules, hash, nil
}

// parseLocalClock parses "HH:MM" into an offset from local midnight.
func parseLocalClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("regular_close_local %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("regular_close_local %q has invalid hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("regular_close_local %q has invalid minute", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

type sessionRulesCanonical struct {
	file sessionRulesFile
}

func (c sessionRulesCanonical) CanonicalMap() (map[string]interface{}, error) {
	mics := make([]string, 0, len(c.file.Rules))
	for mic := range c.file.Rules {
		mics = append(mics, mic)
	}
	sort.Strings(mics)

	rules := make([]interface{}, 0, len(mics))
	for _, mic := range mics {
		entries := make([]interface{}, 0, len(c.file.Rules[mic]))
		for _, spec := range c.file.Rules[mic] {
			entries = append(entries, map[string]interface{}{
				"regular_close_local": spec.RegularCloseLocal,
				"valid_from":          spec.ValidFrom,
				"valid_to":            spec.ValidTo,
			})
		}
		rules = append(rules, map[string]interface{}{"mic": mic, "entries": entries})
	}
	return map[string]interface{}{"version": c.file.Version, "rules": rules}, nil
}

func hashSessionRules(file sessionRulesFile) (string, error) {
	hash, err := hashing.ContentHash(sessionRulesCanonical{file: file})
	if err != nil {
		return "", fmt.Errorf("config: hash session rules: %w", err)
	}
	return hash, nil
}
