package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kaygee-ai/resonance-engine/internal/persist"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to resonance.db")
	last := flag.Int("last", 20, "show N most recent lifecycle events")
	candidate := flag.String("candidate", "", "show one candidate's resonance history")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/resonance.db [--last N] [--candidate id] [--json]")
		os.Exit(2)
	}

	store, err := persist.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *candidate != "" {
		err = runCandidateMode(store, *candidate, *last, *jsonOut)
	} else {
		err = runSummaryMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region summary-mode

type summaryOutput struct {
	Total       int                        `json:"total_candidates"`
	States      map[string]int             `json:"states"`
	Transitions []persist.TransitionRecord `json:"transitions"`
}

// currentStates resolves each candidate's latest recorded state from the
// lifecycle event log.
func currentStates(store *persist.Store) (map[string]int, int, error) {
	rows, err := store.DB().Query(`
		SELECT new_state, COUNT(*) FROM lifecycle_events e
		WHERE e.id = (SELECT MAX(id) FROM lifecycle_events WHERE candidate_id = e.candidate_id)
		GROUP BY new_state`)
	if err != nil {
		return nil, 0, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]int)
	total := 0
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, 0, fmt.Errorf("scan state: %w", err)
		}
		states[state] = n
		total += n
	}
	return states, total, rows.Err()
}

func runSummaryMode(store *persist.Store, last int, jsonOut bool) error {
	states, total, err := currentStates(store)
	if err != nil {
		return err
	}
	transitions, err := store.ListTransitions(last)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(summaryOutput{Total: total, States: states, Transitions: transitions})
	}

	fmt.Printf("Candidates: %d total\n", total)
	for _, s := range []string{"QUARANTINED", "UNDER_REVIEW", "PROMOTED", "REJECTED"} {
		fmt.Printf("  %-13s %d\n", s, states[s])
	}

	fmt.Printf("\nRecent lifecycle events:\n")
	fmt.Printf("%-10s  %-13s  %-13s  %-40s  %s\n", "Candidate", "From", "To", "Reason", "Time")
	for _, tr := range transitions {
		from := tr.OldState
		if from == "" {
			from = "—"
		}
		fmt.Printf("%-10s  %-13s  %-13s  %-40s  %s\n",
			shortID(tr.CandidateID), from, tr.NewState, truncate(tr.Reason, 40),
			tr.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion summary-mode

// #region candidate-mode

type candidateOutput struct {
	CandidateID string                    `json:"candidate_id"`
	Samples     []persist.ResonanceRecord `json:"samples"`
}

func runCandidateMode(store *persist.Store, candidateID string, last int, jsonOut bool) error {
	samples, err := store.ListResonance(candidateID, last)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no resonance samples for candidate %s", candidateID)
	}

	if jsonOut {
		return printJSON(candidateOutput{CandidateID: candidateID, Samples: samples})
	}

	fmt.Printf("Candidate %s: %d samples\n", shortID(candidateID), len(samples))
	fmt.Printf("%-12s  %8s  %s\n", "Domain", "Value", "Time")
	var sum float64
	for _, s := range samples {
		sum += s.Value
		fmt.Printf("%-12s  %8.4f  %s\n", s.Domain, s.Value, s.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	fmt.Printf("\nMean resonance: %.4f\n", sum/float64(len(samples)))
	return nil
}

// #endregion candidate-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// #endregion output
