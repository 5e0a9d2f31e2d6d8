package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tableside/internal/models"
	"tableside/internal/tables"
)

type floorPlanFile struct {
	Takeaway *bool    `yaml:"takeaway"`
	Tables   []string `yaml:"tables"`
}

// LoadFloorPlan reads the board layout from path. Without a file the board
// is the takeaway bucket followed by tables 1..tableCount.
func LoadFloorPlan(path string, tableCount int) (tables.FloorPlan, error) {
	if path == "" {
		return tables.DefaultFloorPlan(tableCount), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read floor plan: %w", err)
	}
	return ParseFloorPlan(data)
}

func ParseFloorPlan(data []byte) (tables.FloorPlan, error) {
	var file floorPlanFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse floor plan: %w", err)
	}

	plan := make(tables.FloorPlan, 0, len(file.Tables)+1)
	seen := make(map[string]bool, len(file.Tables)+1)
	if file.Takeaway == nil || *file.Takeaway {
		plan = append(plan, models.TakeawayTable)
		seen[models.TakeawayTable] = true
	}
	for _, t := range file.Tables {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if seen[models.NormalizeTableID(t)] {
			return nil, fmt.Errorf("floor plan lists table %q twice", t)
		}
		seen[models.NormalizeTableID(t)] = true
		plan = append(plan, t)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("floor plan is empty")
	}
	return plan, nil
}
