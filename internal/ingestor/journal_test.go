package ingestor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/testutil"
)

func TestRenderJournalEntry(t *testing.T) {
	ts := time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)
	fields := map[string]string{
		"MESSAGE":           "Started nginx.service",
		"_SYSTEMD_UNIT":     "nginx.service",
		"_PID":              "42",
		"PRIORITY":          "6",
		"SYSLOG_IDENTIFIER": "systemd",
		"_BOOT_ID":          "ignored",
	}

	raw, err := renderJournalEntry(fields, ts)
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "2026-01-18T12:00:00Z", doc["@timestamp"])
	assert.Equal(t, "Started nginx.service", doc["message"])
	assert.Equal(t, "nginx.service", doc["unit"])
	assert.Equal(t, "42", doc["pid"])
	assert.Equal(t, "6", doc["priority"])
	assert.Equal(t, "systemd", doc["identifier"])
	assert.NotContains(t, doc, "_BOOT_ID")
}

func TestRenderJournalEntry_NoMessage(t *testing.T) {
	_, err := renderJournalEntry(map[string]string{"_PID": "1"}, time.Now())
	assert.ErrorIs(t, err, errNoMessage)
}

func TestNewJournalIngestor_Name(t *testing.T) {
	assert.Equal(t, "journal", NewJournalIngestor(config.JournalIngestorConfig{}, testutil.NewTestLogger()).Name())
}
