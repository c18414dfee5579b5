package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kaygee-ai/resonance-engine/internal/persist"
	"github.com/kaygee-ai/resonance-engine/internal/replay"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to resonance.db")
	last := flag.Int("last", 10, "number of most recent episodes to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath string, last int, outPath string) error {
	store, err := persist.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	episodes, err := store.ListEpisodes(last)
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}
	if len(episodes) == 0 {
		return fmt.Errorf("no episodes found in %s", dbPath)
	}

	fixture, err := buildFixture(episodes)
	if err != nil {
		return err
	}
	return writeFixture(fixture, outPath)
}

// buildFixture converts stored episodes (newest first) into a chronological
// fixture whose expectations are the actions recorded at capture time.
func buildFixture(episodes []persist.EpisodeRecord) (replay.Fixture, error) {
	fixture := replay.Fixture{
		Description: fmt.Sprintf("Session export: %d episodes from production DB", len(episodes)),
	}

	for i := len(episodes) - 1; i >= 0; i-- {
		rec := episodes[i]

		var scores map[string]float64
		if rec.ScoresJSON != "" {
			if err := json.Unmarshal([]byte(rec.ScoresJSON), &scores); err != nil {
				return fixture, fmt.Errorf("episode %s scores: %w", rec.EpisodeID, err)
			}
		}

		fixture.Episodes = append(fixture.Episodes, replay.FixtureEpisode{
			TurnID:    rec.EpisodeID,
			Context:   rec.Context,
			Scores:    scores,
			Principle: rec.Principle,
			Vector:    rec.Vector,
		})
		fixture.ExpectedResults = append(fixture.ExpectedResults, replay.FixtureExpectedResult{
			TurnID: rec.EpisodeID,
			Action: rec.Action,
		})

		if fixture.Config.VectorDim == 0 && len(rec.Vector) > 0 {
			fixture.Config.VectorDim = len(rec.Vector)
		}
	}
	return fixture, nil
}

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("Wrote fixture to %s (%d bytes, %d episodes)\n", outPath, len(data), len(fixture.Episodes))
	return nil
}

// #endregion export
