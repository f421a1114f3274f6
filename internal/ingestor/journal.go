package ingestor

import (
	"encoding/json"
	"errors"
	"time"
)

// journalFields maps journal field names to document keys.
var journalFields = map[string]string{
	"_SYSTEMD_UNIT":     "unit",
	"_PID":              "pid",
	"_UID":              "uid",
	"_GID":              "gid",
	"_COMM":             "command",
	"_EXE":              "executable",
	"_HOSTNAME":         "hostname",
	"PRIORITY":          "priority",
	"SYSLOG_FACILITY":   "facility",
	"SYSLOG_IDENTIFIER": "identifier",
}

var errNoMessage = errors.New("journal entry has no MESSAGE field")

// renderJournalEntry builds the JSON document shipped for one journal entry.
func renderJournalEntry(fields map[string]string, ts time.Time) ([]byte, error) {
	msg, ok := fields["MESSAGE"]
	if !ok {
		return nil, errNoMessage
	}

	doc := map[string]string{
		"@timestamp": ts.UTC().Format(time.RFC3339Nano),
		"message":    msg,
	}
	for field, key := range journalFields {
		if v, ok := fields[field]; ok {
			doc[key] = v
		}
	}

	return json.Marshal(doc)
}
