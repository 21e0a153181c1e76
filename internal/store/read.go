package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/roach88/fam/internal/ir"
)

// ReadSessions returns every session ordered by seq.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ReadSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, first_year, last_actual, last_year
		FROM sessions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Seq, &sess.FirstYear, &sess.LastActual, &sess.LastYear); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns the session with the given ID. The boolean is false
// when no such session exists.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, bool, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, first_year, last_actual, last_year
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Seq, &sess.FirstYear, &sess.LastActual, &sess.LastYear)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("read session: %w", err)
	}
	return sess, true, nil
}

// LatestSession returns the session with the highest seq.
func (s *Store) LatestSession(ctx context.Context) (Session, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM sessions ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("latest session: %w", err)
	}
	return s.ReadSession(ctx, id)
}

// ReadAccounts returns a session's accounts in display order.
func (s *Store) ReadAccounts(ctx context.Context, sessionID string) ([]ir.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, statement, parent_id
		FROM accounts
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ir.Account{}
	for rows.Next() {
		var acc ir.Account
		var statement string
		if err := rows.Scan(&acc.ID, &acc.Name, &statement, &acc.ParentID); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acc.Statement = ir.Statement(statement)
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// ReadCells returns a session's cells ordered by year, then account display
// position, then key.
func (s *Store) ReadCells(ctx context.Context, sessionID string) ([]ir.Cell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.key, c.statement, c.year, c.account_id, c.value
		FROM cells c
		LEFT JOIN accounts a ON a.session_id = c.session_id AND a.id = c.account_id
		WHERE c.session_id = ?
		ORDER BY c.year ASC, a.position ASC, c.key COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	cells := []ir.Cell{}
	for rows.Next() {
		var c ir.Cell
		var statement string
		var value sql.NullFloat64
		if err := rows.Scan(&c.Key, &statement, &c.Year, &c.AccountID, &value); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.Statement = ir.Statement(statement)
		c.Value = math.NaN()
		if value.Valid {
			c.Value = value.Float64
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return cells, nil
}

// ReadRuns returns a session's runs ordered by seq.
func (s *Store) ReadRuns(ctx context.Context, sessionID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session_id, ruleset_hash, years, base_profit, cash, rules
		FROM runs
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Seq, &r.SessionID, &r.RuleSetHash, &r.Years, &r.BaseProfit, &r.Cash, &r.Rules); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
