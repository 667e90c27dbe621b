package store

import (
	"cmp"
	"context"
	"database/sql"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"github.com/roach88/stripe/internal/ir"
)

// ReadProgram returns the program stored under hash.
// Returns an error wrapping ErrNotFound if no such program exists.
func (s *Store) ReadProgram(ctx context.Context, hash string) (*ir.Program, error) {
	var wire string
	err := s.db.QueryRowContext(ctx, `SELECT wire FROM programs WHERE hash = ?`, hash).Scan(&wire)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "program %s", hash)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read program %s", hash)
	}
	return decodeProgram(wire)
}

// HasProgram reports whether a program with the given hash is stored.
func (s *Store) HasProgram(ctx context.Context, hash string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM programs WHERE hash = ?`, hash).Scan(&n); err != nil {
		return false, errors.Wrapf(err, "check program %s", hash)
	}
	return n > 0, nil
}

const runColumns = `
	id, program_hash, status, error_kind, error_message, parallelism,
	activations, tuples_visited, tuples_admitted, statements, engine_version,
	max_statements, seed
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var r RunRecord
	var status string
	var seed sql.NullInt64
	err := row.Scan(
		&r.ID, &r.ProgramHash, &status, &r.ErrorKind, &r.ErrorMessage, &r.Parallelism,
		&r.Stats.Activations, &r.Stats.TuplesVisited, &r.Stats.TuplesAdmitted, &r.Stats.Statements,
		&r.EngineVersion, &r.MaxStatements, &seed,
	)
	r.Status = RunStatus(status)
	if seed.Valid {
		s := uint64(seed.Int64)
		r.Seed = &s
	}
	return r, err
}

// ReadRun returns the run with the given ID, output buffers included.
// Returns an error wrapping ErrNotFound if no such run exists.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, errors.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return RunRecord{}, errors.Wrapf(err, "read run %s", id)
	}

	outputs, err := s.readBuffers(ctx, id)
	if err != nil {
		return RunRecord{}, err
	}
	r.Outputs = outputs
	return r, nil
}

// ListRuns returns runs in insertion order, without output buffers.
// An empty programHash lists every run. Returns an empty slice (not nil)
// when there are none.
func (s *Store) ListRuns(ctx context.Context, programHash string) ([]RunRecord, error) {
	if programHash == "" {
		return s.QueryRuns(ctx, nil)
	}
	return s.QueryRuns(ctx, Equals{Column: "program_hash", Value: programHash})
}

// QueryRuns returns the runs matching filter in insertion order, without
// output buffers. A nil filter matches every run.
func (s *Store) QueryRuns(ctx context.Context, filter Predicate) ([]RunRecord, error) {
	where, args, err := compilePredicate(filter)
	if err != nil {
		return nil, errors.Wrap(err, "compile run filter")
	}
	query := `SELECT ` + runColumns + ` FROM runs WHERE ` + where + ` ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

func (s *Store) readBuffers(ctx context.Context, runID string) (map[string]ir.Buffer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, section, data FROM run_buffers
		WHERE run_id = ?
		ORDER BY name, section
	`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "read buffers of run %s", runID)
	}
	defer rows.Close()

	out := map[string]ir.Buffer{}
	for rows.Next() {
		var name, section string
		var data []byte
		if err := rows.Scan(&name, &section, &data); err != nil {
			return nil, errors.Wrap(err, "scan buffer")
		}
		b, ok := out[name]
		if !ok {
			b = ir.Buffer{Sections: map[string][]byte{}}
			out[name] = b
		}
		if data == nil {
			data = []byte{}
		}
		b.Sections[section] = data
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate buffers")
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}
