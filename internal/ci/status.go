package ci

import (
	"context"
	"errors"
	"io/fs"
	"slices"

	"github.com/google/uuid"
)

// DriftKind classifies a difference between the repository files and the
// records of what was written.
type DriftKind string

const (
	// DriftModified marks a unit whose content changed on disk.
	DriftModified DriftKind = "modified"
	// DriftMissing marks a recorded unit whose file is gone.
	DriftMissing DriftKind = "missing"
	// DriftUntracked marks a unit file no record points to.
	DriftUntracked DriftKind = "untracked"
)

// Drift is one out-of-band change to the repository.
type Drift struct {
	Kind     DriftKind
	Location string
	NodeID   uuid.UUID
	Culture  string
	// Unit is the decoded file content, when the file exists and parses.
	Unit *Unit
}

// Status compares the repository files against the file records and
// returns the differences ordered by location.
func (r *Repository) Status(ctx context.Context) ([]Drift, error) {
	records, err := r.meta.ListBySite(ctx, uuid.Nil)
	if err != nil {
		return nil, err
	}
	locations, err := r.files.List(ctx, "")
	if err != nil {
		return nil, err
	}
	onDisk := make(map[string]struct{}, len(locations))
	for _, location := range locations {
		onDisk[location] = struct{}{}
	}

	var out []Drift
	tracked := make(map[string]struct{}, len(records))
	for _, record := range records {
		tracked[record.Location] = struct{}{}
		if _, ok := onDisk[record.Location]; !ok {
			out = append(out, Drift{Kind: DriftMissing, Location: record.Location, NodeID: record.NodeID, Culture: record.Culture})
			continue
		}
		drift, err := r.Inspect(ctx, record.Location)
		if err != nil {
			return nil, err
		}
		if drift != nil {
			out = append(out, *drift)
		}
	}
	for _, location := range locations {
		if _, ok := tracked[location]; ok {
			continue
		}
		drift, err := r.Inspect(ctx, location)
		if err != nil {
			return nil, err
		}
		if drift != nil {
			out = append(out, *drift)
		}
	}
	slices.SortFunc(out, func(a, b Drift) int {
		switch {
		case a.Location < b.Location:
			return -1
		case a.Location > b.Location:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

// Inspect checks the unit at location against its record. It returns nil
// when the file matches what was last written.
func (r *Repository) Inspect(ctx context.Context, location string) (*Drift, error) {
	record, err := r.meta.ByLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	data, err := r.files.Read(ctx, location)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if record == nil {
			return nil, nil
		}
		return &Drift{Kind: DriftMissing, Location: location, NodeID: record.NodeID, Culture: record.Culture}, nil
	}
	if record != nil && record.Hash == Hash(data) {
		return nil, nil
	}

	drift := &Drift{Kind: DriftUntracked, Location: location}
	if record != nil {
		drift.Kind = DriftModified
		drift.NodeID = record.NodeID
		drift.Culture = record.Culture
	}
	if unit, err := r.serializer.Deserialize(ctx, data); err == nil {
		drift.Unit = unit
		if record == nil && unit.Node != nil {
			drift.NodeID = unit.Node.ID
		}
		if record == nil && unit.Culture != nil {
			drift.Culture = unit.Culture.Culture
		}
	} else {
		r.logger.Warn("ci.status.unreadable", "location", location, "error", err)
	}
	return drift, nil
}
