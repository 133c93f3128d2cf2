package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dentalbot/internal/config"
	"dentalbot/internal/session"
)

func TestParseCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	cmd := parseCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tomorrow", "at", "3pm"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "3:00 PM")
	assert.Contains(t, out.String(), `"hour": 15`)
}

func TestBuildDepsMemory(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)

	d, err := buildDeps(context.Background(), cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer d.close()

	require.NotNil(t, d.janitor)
	assert.Nil(t, d.oauth)

	reply := d.bot.HandleTurn(context.Background(), "c1", "+15550100", "how much is a cleaning?")
	assert.NotEmpty(t, reply)

	s, err := d.sessions.Lookup(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, s.History, 2)
	assert.Equal(t, session.RoleAssistant, s.History[1].Role)
}

func TestBuildDepsRejectsUnknownCalendarMapping(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.PractitionerCalendars = "dr-nobody=cal"

	_, err = buildDeps(context.Background(), cfg, zap.NewNop(), nil)
	assert.Error(t, err)
}
