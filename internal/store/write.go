package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/roach88/stripe/internal/ir"
)

// WriteProgram stores p under its content hash and returns the hash.
// Writing a program that is already stored is a no-op.
func (s *Store) WriteProgram(ctx context.Context, p *ir.Program) (string, error) {
	wire, hash, err := encodeProgram(p)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO programs (hash, entry_name, ir_version, wire)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, hash, entryName(p), ir.IRVersion, string(wire)); err != nil {
		return "", errors.Wrapf(err, "write program %s", hash)
	}
	return hash, nil
}

// WriteRun stores a run record and its output buffers atomically.
// The referenced program must already be stored.
func (s *Store) WriteRun(ctx context.Context, r RunRecord) error {
	if r.ID == "" {
		return errors.New("write run: empty run ID")
	}
	switch r.Status {
	case RunSucceeded, RunFailed:
	default:
		return errors.Errorf("write run %s: invalid status %q", r.ID, r.Status)
	}
	if r.EngineVersion == "" {
		r.EngineVersion = ir.EngineVersion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs (
			id, program_hash, status, error_kind, error_message, parallelism,
			activations, tuples_visited, tuples_admitted, statements, engine_version,
			max_statements, seed
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		r.ID, r.ProgramHash, string(r.Status), r.ErrorKind, r.ErrorMessage, r.Parallelism,
		r.Stats.Activations, r.Stats.TuplesVisited, r.Stats.TuplesAdmitted, r.Stats.Statements,
		r.EngineVersion, r.MaxStatements, seedParam(r.Seed),
	)
	if err != nil {
		return errors.Wrapf(err, "write run %s", r.ID)
	}

	if err := writeBuffers(ctx, tx, r.ID, r.Outputs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit run %s", r.ID)
	}
	return nil
}

func writeBuffers(ctx context.Context, tx *sql.Tx, runID string, bufs map[string]ir.Buffer) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_buffers (run_id, name, section, data)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare buffer insert")
	}
	defer stmt.Close()

	for _, name := range sortedKeys(bufs) {
		sections := bufs[name].Sections
		for _, section := range sortedKeys(sections) {
			data := sections[section]
			if data == nil {
				data = []byte{}
			}
			if _, err := stmt.ExecContext(ctx, runID, name, section, data); err != nil {
				return errors.Wrapf(err, "write buffer %s/%s of run %s", name, section, runID)
			}
		}
	}
	return nil
}

// seedParam stores a seed bit for bit in SQLite's signed INTEGER.
func seedParam(seed *uint64) any {
	if seed == nil {
		return nil
	}
	return int64(*seed)
}
