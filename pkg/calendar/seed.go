// Package calendar holds the event calendar seed document.
package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cousinade/cousinade-engine/pkg/models"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed describes the weekends and slots inserted into an empty calendar.
type Seed struct {
	Weekends []SeedWeekend `yaml:"weekends"`
}

// SeedWeekend is one weekend of the seed document.
type SeedWeekend struct {
	Name  string     `yaml:"name"`
	Start string     `yaml:"start"`
	End   string     `yaml:"end"`
	Slots []SeedSlot `yaml:"slots"`
}

// SeedSlot is one slot; its position in the list becomes its order index.
type SeedSlot struct {
	Date  string `yaml:"date"`
	Label string `yaml:"label"`
}

// Default returns the seed embedded in the binary.
func Default() (*Seed, error) {
	return Parse(defaultSeed)
}

// Load reads a seed document from path, or returns Default when path is empty.
func Load(path string) (*Seed, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar seed %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse calendar seed: %w", err)
	}
	if _, err := seed.Build(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Build converts the document into unsaved weekends with ordered slots.
func (s *Seed) Build() ([]*models.WeekendSlots, error) {
	if len(s.Weekends) == 0 {
		return nil, fmt.Errorf("calendar seed has no weekends")
	}

	result := make([]*models.WeekendSlots, 0, len(s.Weekends))
	for i, w := range s.Weekends {
		name := strings.TrimSpace(w.Name)
		if name == "" {
			return nil, fmt.Errorf("weekend %d: name is required", i)
		}
		start, err := time.Parse(models.DateLayout, w.Start)
		if err != nil {
			return nil, fmt.Errorf("weekend %q: invalid start date: %w", name, err)
		}
		end, err := time.Parse(models.DateLayout, w.End)
		if err != nil {
			return nil, fmt.Errorf("weekend %q: invalid end date: %w", name, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("weekend %q: end date before start date", name)
		}

		ws := &models.WeekendSlots{
			Weekend: &models.EventWeekend{Name: name, StartDate: start, EndDate: end},
		}
		for j, slot := range w.Slots {
			label := strings.TrimSpace(slot.Label)
			if label == "" {
				return nil, fmt.Errorf("weekend %q slot %d: label is required", name, j)
			}
			d, err := time.Parse(models.DateLayout, slot.Date)
			if err != nil {
				return nil, fmt.Errorf("weekend %q slot %q: invalid date: %w", name, label, err)
			}
			if d.Before(start) || d.After(end) {
				return nil, fmt.Errorf("weekend %q slot %q: date outside weekend", name, label)
			}
			ws.Slots = append(ws.Slots, &models.EventSlot{Date: d, Label: label, OrderIndex: j})
		}
		result = append(result, ws)
	}
	return result, nil
}

// SlotCount returns the number of slots across all weekends.
func (s *Seed) SlotCount() int {
	n := 0
	for _, w := range s.Weekends {
		n += len(w.Slots)
	}
	return n
}
