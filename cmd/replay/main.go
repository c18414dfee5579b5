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
	dbPath := flag.String("db", "", "path to resonance.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	last := flag.Int("last", 50, "episodes to replay in DB mode")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/resonance.db [--last N]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *last)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	results, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, f.ExpectedResults)
}

// #endregion fixture-mode

// #region db-mode

func runDBMode(dbPath string, last int) int {
	store, err := persist.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	episodes, err := store.ListEpisodes(last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list episodes: %v\n", err)
		return 2
	}
	if len(episodes) == 0 {
		fmt.Fprintln(os.Stderr, "no episodes found")
		return 2
	}

	f, err := fixtureFromEpisodes(episodes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build fixture: %v\n", err)
		return 2
	}

	results, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, f.ExpectedResults)
}

// fixtureFromEpisodes converts stored episodes (newest first) into a
// chronological fixture carrying the recorded actions as expectations.
func fixtureFromEpisodes(episodes []persist.EpisodeRecord) (*replay.Fixture, error) {
	f := &replay.Fixture{
		Description: fmt.Sprintf("DB replay of %d episodes", len(episodes)),
	}
	for i := len(episodes) - 1; i >= 0; i-- {
		rec := episodes[i]

		var scores map[string]float64
		if rec.ScoresJSON != "" {
			if err := json.Unmarshal([]byte(rec.ScoresJSON), &scores); err != nil {
				return nil, fmt.Errorf("episode %s scores: %w", rec.EpisodeID, err)
			}
		}

		f.Episodes = append(f.Episodes, replay.FixtureEpisode{
			TurnID:    rec.EpisodeID,
			Context:   rec.Context,
			Scores:    scores,
			Principle: rec.Principle,
			Vector:    rec.Vector,
		})
		f.ExpectedResults = append(f.ExpectedResults, replay.FixtureExpectedResult{
			TurnID: rec.EpisodeID,
			Action: rec.Action,
		})

		if f.Config.VectorDim == 0 && len(rec.Vector) > 0 {
			f.Config.VectorDim = len(rec.Vector)
		}
	}
	return f, nil
}

// #endregion db-mode

// #region output

func printComparison(results []replay.Result, expected []replay.FixtureExpectedResult) int {
	fmt.Printf("%-38s| %-10s| %-10s| %s\n", "Turn", "Expected", "Replayed", "Match")
	fmt.Printf("%-38s+%-11s+%-11s+%s\n",
		"--------------------------------------", "-----------", "-----------", "------")

	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}

	matches := 0
	for i := 0; i < total; i++ {
		got := results[i].Action
		if results[i].Err != "" {
			got = "ERROR"
		}
		match := "DIFF"
		if results[i].Err == "" && got == expected[i].Action {
			match = "OK"
			matches++
		}
		fmt.Printf("%-38s| %-10s| %-10s| %s\n", results[i].TurnID, expected[i].Action, got, match)
	}

	diverge := total - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", total, matches, diverge)
	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
