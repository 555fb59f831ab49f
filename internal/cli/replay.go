package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/futarchy-labs/futarchyd/internal/events"
	"github.com/futarchy-labs/futarchyd/internal/indexer"
)

var replayIndexerDSN string

// replayCmd replays a CBOR event journal, printing each event and optionally
// rebuilding a sqlite index from it.
var replayCmd = &cobra.Command{
	Use:   "replay <journal-file>",
	Short: "Replay an event journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayIndexerDSN, "index-to", "", "rebuild a sqlite index at this DSN")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var idx *indexer.Indexer
	if replayIndexerDSN != "" {
		idx, err = indexer.Open(cmd.Context(), indexer.Config{
			Driver: indexer.DriverSQLite,
			DSN:    replayIndexerDSN,
		})
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
	}

	reader := events.NewJournalReader(f)
	count := 0
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("journal entry %d: %w", count, err)
		}

		if !quiet {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", ev.EventType(), payload)
		}
		if idx != nil {
			if err := idx.IndexEvent(cmd.Context(), ev); err != nil {
				return fmt.Errorf("index entry %d: %w", count, err)
			}
		}
		count++
	}

	fmt.Printf("replayed %d events\n", count)
	return nil
}
