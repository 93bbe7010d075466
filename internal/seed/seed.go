// Package seed loads fixture users and appointments for the memory store
// driver.
package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"skedit/pkg/model"
)

type Data struct {
	Users        []*model.User        `json:"users"`
	Appointments []*model.Appointment `json:"appointments"`
}

func Load(path string) (*Data, error) {
	if path == "" {
		return &Data{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	for i, u := range data.Users {
		if u == nil || u.ID == "" {
			return nil, fmt.Errorf("seed user %d has no id", i)
		}
	}
	for i, a := range data.Appointments {
		if a == nil || a.ID == "" {
			return nil, fmt.Errorf("seed appointment %d has no id", i)
		}
		if a.Version == 0 {
			a.Version = 1
		}
	}
	return &data, nil
}
