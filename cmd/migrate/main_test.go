package main

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_core_tables.sql", true, "0001", "create_core_tables"},
		{"0012_add_load_runs_index.sql", true, "0012", "add_load_runs_index"},
		{"001_invalid.sql", false, "", ""},        // wrong number format
		{"0001_test", false, "", ""},              // missing .sql
		{"0001.sql", false, "", ""},               // missing name
		{"invalid_0001_test.sql", false, "", ""},  // wrong order
	}

	pattern := regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := pattern.FindStringSubmatch(tt.filename)
			if tt.valid {
				if matches == nil {
					t.Fatalf("expected %s to match", tt.filename)
				}
				if matches[1] != tt.version || matches[2] != tt.name {
					t.Errorf("got version %q name %q, want %q %q", matches[1], matches[2], tt.version, tt.name)
				}
			} else if matches != nil {
				t.Errorf("expected %s not to match, got %v", tt.filename, matches)
			}
		})
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	content := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);")
	same := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);")
	different := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.u` (id INT64);")

	sum := func(b []byte) string { return fmt.Sprintf("%x", sha256.Sum256(b)) }

	if sum(content) != sum(same) {
		t.Error("same content should produce the same checksum")
	}
	if sum(content) == sum(different) {
		t.Error("different content should produce different checksums")
	}
}
