// Package prefs loads and saves the user's preference blob.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preferences is the flat option mapping persisted between runs.
type Preferences struct {
	VoiceID         int     `yaml:"voice_id" json:"voice_id"`
	SpeechRate      int     `yaml:"speech_rate" json:"speech_rate"`
	Volume          float64 `yaml:"volume" json:"volume"`
	EnergyThreshold int     `yaml:"energy_threshold" json:"energy_threshold"`
	WakeWord        string  `yaml:"wake_word" json:"wake_word"`
	Language        string  `yaml:"language" json:"language"`
	UserName        string  `yaml:"user_name" json:"user_name"`
}

func Defaults() Preferences {
	return Preferences{
		VoiceID:         1,
		SpeechRate:      180,
		Volume:          0.9,
		EnergyThreshold: 300,
		WakeWord:        "aide",
		Language:        "en-US",
		UserName:        "Sir",
	}
}

// Load reads path on top of Defaults. A missing file yields the defaults and
// no error; a malformed file yields the defaults and the parse error.
func Load(path string) (Preferences, error) {
	p := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Defaults(), fmt.Errorf("parse preferences: %w", err)
	}
	return p.normalized(), nil
}

// Save writes p atomically (temp file + rename).
func Save(path string, p Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	raw, err := yaml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".preferences-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp preferences: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

func (p Preferences) normalized() Preferences {
	d := Defaults()
	if p.Volume < 0 {
		p.Volume = 0
	}
	if p.Volume > 1 {
		p.Volume = 1
	}
	if p.SpeechRate <= 0 {
		p.SpeechRate = d.SpeechRate
	}
	if p.VoiceID < 0 {
		p.VoiceID = d.VoiceID
	}
	p.WakeWord = strings.ToLower(strings.TrimSpace(p.WakeWord))
	if strings.TrimSpace(p.Language) == "" {
		p.Language = d.Language
	}
	if strings.TrimSpace(p.UserName) == "" {
		p.UserName = d.UserName
	}
	return p
}
