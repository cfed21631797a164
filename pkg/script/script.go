// Package script composes the self-contained startup payload submitted to the
// scheduler. The payload loads the cluster's environment module and then
// replaces itself with `hpcode agent`, which performs port allocation, starts
// the editor server, and relays termination signals. Keeping the shell layer
// to a single exec means every lifecycle concern lives in one process that
// installs its handlers before the server starts.
package script

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

const payloadTemplate = `#!/bin/bash
# Generated by hpcode; submitted via sbatch. Do not edit.
{{- if .Module}}

# Make the module command available in non-interactive batch shells.
if ! command -v module >/dev/null 2>&1; then
    source /etc/profile.d/modules.sh 2>/dev/null || true
fi
module load {{.Module}}
{{- end}}

exec {{.Self}} agent \
    --port-min {{.PortMin}} \
    --port-max {{.PortMax}} \
    --port-policy {{.Policy}} \
    --port-attempts {{.MaxAttempts}} \
    --server {{.ServerBinary}} \
    --grace {{.GraceSecs}}{{range .ServerArgs}} \
    --server-arg {{.}}{{end}}
`

var tmpl = template.Must(template.New("payload").Parse(payloadTemplate))

// Params parameterizes one generated payload.
type Params struct {
	Self         string // absolute path of the hpcode binary
	Module       string
	PortMin      int
	PortMax      int
	Policy       string
	MaxAttempts  int
	ServerBinary string
	ServerArgs   []string
	Grace        time.Duration
}

// validate rejects values that would corrupt the generated shell text.
func (p Params) validate() error {
	if p.Self == "" {
		return fmt.Errorf("script: binary path is required")
	}
	for _, v := range append([]string{p.Self, p.Module, p.ServerBinary}, p.ServerArgs...) {
		if strings.ContainsAny(v, " \t\n;|&$`'\"\\") {
			return fmt.Errorf("script: value %q contains shell metacharacters", v)
		}
	}
	if p.PortMin <= 0 || p.PortMax < p.PortMin {
		return fmt.Errorf("script: invalid port range %d-%d", p.PortMin, p.PortMax)
	}
	if p.ServerBinary == "" {
		return fmt.Errorf("script: server binary is required")
	}
	if p.Grace <= 0 {
		return fmt.Errorf("script: grace must be positive")
	}
	return nil
}

// GraceSecs returns the grace window in whole seconds, the unit the agent's
// command line uses.
func (p Params) GraceSecs() int { return int(p.Grace / time.Second) }

// Render returns the payload text.
func Render(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("script: render payload: %w", err)
	}
	return buf.String(), nil
}

// Write renders the payload into dir and returns its path. The file is
// created with owner-only permissions since it is executed under the
// submitting user's identity.
func Write(dir string, p Params) (string, error) {
	text, err := Render(p)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "hpcode_*.sh")
	if err != nil {
		return "", fmt.Errorf("script: create payload file: %w", err)
	}
	path := f.Name()

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("script: write payload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("script: close payload: %w", err)
	}
	if err := os.Chmod(path, 0700); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("script: chmod payload: %w", err)
	}

	return filepath.Clean(path), nil
}
