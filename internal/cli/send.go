package cli

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/writer"
)

// NewSendCmd creates the send command.
func NewSendCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [record...]",
		Short: "Post records synchronously and stop at the first delivery failure",
		Long: `send writes each argument as one document. Without arguments every
non-empty line of stdin is a record. Unlike run, delivery is synchronous and
the first failure aborts with a non-zero exit code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile, applySinkOverrides)
			if err != nil {
				return err
			}
			w, err := BuildSink(cfg.Sink)
			if err != nil {
				return fmt.Errorf("building sink: %w", err)
			}

			var sent int
			if len(args) > 0 {
				sent, err = sendArgs(w, args)
			} else {
				sent, err = sendLines(w, cmd.InOrStdin())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %d records to %s\n", sent, w.Endpoint())
			return err
		},
	}

	addSinkFlags(cmd)
	return cmd
}

func sendArgs(w *writer.Writer, records []string) (int, error) {
	for i, rec := range records {
		if err := w.WriteAll([]byte(rec)); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

func sendLines(w *writer.Writer, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	sent := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := w.WriteAll(line); err != nil {
			return sent, err
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return sent, fmt.Errorf("reading stdin: %w", err)
	}
	return sent, w.Flush()
}
