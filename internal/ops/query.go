package ops

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/riftlabs/controlplane/internal/reconcile"
	"github.com/riftlabs/controlplane/internal/scope"
)

// Query is a read-only aggregator over one scope's persisted state. It
// never writes; every method opens a file, decodes it, and returns a
// snapshot — the same way a human operator would by reading the directory
// tree directly.
type Query struct {
	Layout scope.Layout
}

// NewQuery returns a Query rooted at layout.
func NewQuery(layout scope.Layout) *Query {
	return &Query{Layout: layout}
}

// OpenPositions returns the current reconciled position ledger, or an empty
// map if none has been written yet.
func (q *Query) OpenPositions() (map[string]reconcile.OpenPosition, error) {
	var positions map[string]reconcile.OpenPosition
	if err := scope.ReadJSON(q.Layout.OpenPositions(), &positions); err != nil {
		if os.IsNotExist(err) {
			return map[string]reconcile.OpenPosition{}, nil
		}
		return nil, err
	}
	if positions == nil {
		positions = map[string]reconcile.OpenPosition{}
	}
	return positions, nil
}

// activeUniverseFile mirrors universe.Governor's own on-disk shape.
type activeUniverseFile struct {
	Symbols []string `json:"symbols"`
}

// ActiveUniverse returns the currently governed symbol universe, sorted.
func (q *Query) ActiveUniverse() ([]string, error) {
	var f activeUniverseFile
	if err := scope.ReadJSON(q.Layout.ActiveUniverse(), &f); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	sort.Strings(f.Symbols)
	return f.Symbols, nil
}

// ProposalFiles lists every artifact filename present for proposalID:
// proposal.json, critique.json, audit.json, synthesis.json, approval.json —
// only the ones that exist. Readers tolerate missing later stages.
func (q *Query) ProposalFiles(proposalID string) ([]string, error) {
	dir := q.Layout.ProposalDir(proposalID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadProposalArtifact decodes a single named artifact (e.g.
// "synthesis.json") from proposalID's directory into v.
func (q *Query) ReadProposalArtifact(proposalID, filename string, v any) error {
	return scope.ReadJSON(filepath.Join(q.Layout.ProposalDir(proposalID), filename), v)
}
