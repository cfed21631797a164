package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grovetools/hpcode/pkg/session"
)

func TestRenderSessionTableEmpty(t *testing.T) {
	out := renderSessionTable(nil, false)
	assert.Equal(t, "No VS Code servers are running.\n", out)
}

func TestRenderSessionTablePlain(t *testing.T) {
	views := []session.View{
		{JobID: "12345", Name: "vscode_server", Partition: "int", Node: "node042",
			State: session.StateRunning, URL: "http://10.7.0.5:44017"},
		{JobID: "12346", Name: "vscode_server_gpu", Partition: "gpu",
			State: session.StatePending},
	}

	out := renderSessionTable(views, false)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)

	assert.Contains(t, lines[0], "JOB ID")
	assert.Contains(t, lines[0], "URL")
	assert.Contains(t, lines[1], "12345")
	assert.Contains(t, lines[1], "http://10.7.0.5:44017")
	assert.Contains(t, lines[2], "12346")

	// Pending sessions show placeholders, not blanks.
	assert.Contains(t, lines[2], "-")

	// Columns stay aligned; every row starts its NAME column at the same
	// offset.
	nameCol := strings.Index(lines[0], "NAME")
	assert.Equal(t, "vscode_server", lines[1][nameCol:nameCol+len("vscode_server")])
}
