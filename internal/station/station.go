// SPDX-License-Identifier: MIT

// Package station loads the list of named stream URLs the player can tune
// to.
package station

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Station is one named stream endpoint.
type Station struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads a station list from a YAML file. The file is a sequence of
// name/url pairs; order is preserved.
func Load(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read station list: %w", err)
	}

	var stations []Station
	if err := yaml.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("failed to parse station list: %w", err)
	}

	for i, st := range stations {
		if st.Name == "" {
			return nil, fmt.Errorf("station %d has no name", i)
		}
		if !validURL(st.URL) {
			return nil, fmt.Errorf("station %q has invalid url %q", st.Name, st.URL)
		}
	}
	return stations, nil
}

// Find returns the station whose name matches, case-insensitively.
func Find(stations []Station, name string) (Station, bool) {
	for _, st := range stations {
		if strings.EqualFold(st.Name, name) {
			return st, true
		}
	}
	return Station{}, false
}

func validURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
