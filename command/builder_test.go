package command

import (
	"context"
	"testing"
	"time"
)

func TestValidateJobID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain numeric", "12345", false},
		{"array task", "12345_7", false},
		{"cluster suffix", "12345.cluster", false},
		{"empty", "", true},
		{"alphabetic", "abc", true},
		{"shell metacharacters", "123;rm -rf", true},
		{"leading dot", ".12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJobID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateJobName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"default name", "vscode_server", false},
		{"with hyphen", "my-session", false},
		{"with dot", "session.1", false},
		{"empty name", "", true},
		{"special characters", "my@session", true},
		{"starts with hyphen", "-session", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJobName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePartition(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "int", false},
		{"valid with digits", "gpu2", false},
		{"empty", "", true},
		{"uppercase", "GPU", true},
		{"special characters", "gpu;", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePartition(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePartition(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid path", "/tmp/hpcode_1234.log", false},
		{"empty", "", true},
		{"traversal", "../etc/passwd", true},
		{"injection", "/tmp/x;rm", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSafeBuilderBuild(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "sacct", "-PXn", "-j", "12345")
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if cmd.timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, cmd.timeout)
	}

	cmd = cmd.WithTimeout(30 * time.Second)
	if cmd.timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cmd.timeout)
	}

	// Timeouts are capped
	cmd = cmd.WithTimeout(time.Hour)
	if cmd.timeout != MaxTimeout {
		t.Errorf("expected timeout capped at %v, got %v", MaxTimeout, cmd.timeout)
	}

	if _, err := sb.Build(context.Background(), ""); err == nil {
		t.Error("Build with empty name should fail")
	}
}

func TestSafeBuilderValidate(t *testing.T) {
	sb := NewSafeBuilder()

	if err := sb.Validate("jobID", "12345"); err != nil {
		t.Errorf("expected jobID validation to pass: %v", err)
	}
	if err := sb.Validate("nosuch", "value"); err == nil {
		t.Error("unknown validator type should fail")
	}
}
