// SPDX-License-Identifier: MIT

package station

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStations(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeStations(t, `
- name: SomaFM Groove Salad
  url: https://ice1.somafm.com/groovesalad-128-mp3
- name: Local Test
  url: http://127.0.0.1:8000/stream
`)

	stations, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("len = %d, want 2", len(stations))
	}
	if stations[0].Name != "SomaFM Groove Salad" {
		t.Errorf("first station name = %q", stations[0].Name)
	}
	if stations[1].URL != "http://127.0.0.1:8000/stream" {
		t.Errorf("second station url = %q", stations[1].URL)
	}
}

func TestLoadRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "- url: https://example.com/stream\n"},
		{"missing url", "- name: Nameless\n"},
		{"bad scheme", "- name: FTP\n  url: ftp://example.com/stream\n"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeStations(t, tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFind(t *testing.T) {
	stations := []Station{
		{Name: "Alpha", URL: "http://a"},
		{Name: "Beta", URL: "http://b"},
	}
	if st, ok := Find(stations, "beta"); !ok || st.URL != "http://b" {
		t.Errorf("Find(beta) = %+v, %v", st, ok)
	}
	if _, ok := Find(stations, "gamma"); ok {
		t.Error("Find(gamma) should miss")
	}
}
