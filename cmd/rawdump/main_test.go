package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fjorddata/fjord-go/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rawdump.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
project: my-project
token: secret-token
database: sensors
table: readings
partitions: 4
page_size: 500
columns: [temperature, humidity]
log_level: debug
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Project != "my-project" {
		t.Errorf("Project = %q", cfg.Project)
	}
	if cfg.Partitions != 4 || cfg.PageSize != 500 {
		t.Errorf("Partitions = %d, PageSize = %d", cfg.Partitions, cfg.PageSize)
	}
	if len(cfg.Columns) != 2 {
		t.Errorf("Columns = %v", cfg.Columns)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
project: from-file
token: file-token
`)

	t.Setenv("FJORD_PROJECT", "from-env")
	t.Setenv("FJORD_TOKEN", "env-token")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Project != "from-env" {
		t.Errorf("Project = %q, want env override", cfg.Project)
	}
	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want env override", cfg.Token)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing project", content: "token: abc\n"},
		{name: "missing credentials", content: "project: p\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("loadConfig() expected error")
			}
		})
	}
}

func TestRun_StreamsNDJSON(t *testing.T) {
	mock := testutil.NewMockFjord()
	defer mock.Close()

	rows := make([]testutil.RawRow, 30)
	for i := range rows {
		rows[i] = testutil.RawRow{
			Key:     fmt.Sprintf("row-%02d", i),
			Columns: map[string]any{"value": i},
		}
	}
	mock.ServeRawTable("dump-project", "sensors", "readings", rows)

	cfg := config{
		Project:  "dump-project",
		BaseURL:  mock.URL(),
		Token:    "test-token",
		Database: "sensors",
		Table:    "readings",
		PageSize: 30,
	}

	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	lines := 0
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var row struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if row.Key == "" {
			t.Errorf("line %d has empty key", lines)
		}
		lines++
	}
	if lines != 30 {
		t.Errorf("wrote %d lines, want 30", lines)
	}
}
