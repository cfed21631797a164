package script

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() Params {
	return Params{
		Self:         "/usr/local/bin/hpcode",
		Module:       "code-server",
		PortMin:      44000,
		PortMax:      44099,
		Policy:       "probe",
		MaxAttempts:  3,
		ServerBinary: "code-server",
		Grace:        10 * time.Second,
	}
}

func TestRender(t *testing.T) {
	text, err := Render(validParams())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "#!/bin/bash"))
	assert.Contains(t, text, "module load code-server")
	assert.Contains(t, text, "exec /usr/local/bin/hpcode agent")
	assert.Contains(t, text, "--port-min 44000")
	assert.Contains(t, text, "--port-max 44099")
	assert.Contains(t, text, "--port-policy probe")
	assert.Contains(t, text, "--grace 10")

	// exec'ing the agent means the module-load shell never backgrounds
	// anything itself; the agent owns signal handling from the start
	assert.NotContains(t, text, "&\n")
}

func TestRenderNoModule(t *testing.T) {
	p := validParams()
	p.Module = ""

	text, err := Render(p)
	require.NoError(t, err)
	assert.NotContains(t, text, "module load")
}

func TestRenderServerArgs(t *testing.T) {
	p := validParams()
	p.ServerArgs = []string{"--verbose", "--user-data-dir=/scratch/alice"}

	text, err := Render(p)
	require.NoError(t, err)
	assert.Contains(t, text, "--server-arg --verbose")
	assert.Contains(t, text, "--server-arg --user-data-dir=/scratch/alice")
}

func TestRenderRejectsMetacharacters(t *testing.T) {
	cases := []func(*Params){
		func(p *Params) { p.Module = "x; rm -rf /" },
		func(p *Params) { p.ServerBinary = "code-server$(true)" },
		func(p *Params) { p.ServerArgs = []string{"a b"} },
		func(p *Params) { p.Self = "/bin/hp code" },
	}
	for i, mutate := range cases {
		p := validParams()
		mutate(&p)
		_, err := Render(p)
		assert.Error(t, err, "case %d", i)
	}
}

func TestRenderInvalidParams(t *testing.T) {
	p := validParams()
	p.PortMin = 44099
	p.PortMax = 44000
	_, err := Render(p)
	assert.Error(t, err)

	p = validParams()
	p.Grace = 0
	_, err = Render(p)
	assert.Error(t, err)

	p = validParams()
	p.ServerBinary = ""
	_, err = Render(p)
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, validParams())
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "exec /usr/local/bin/hpcode agent")
}
