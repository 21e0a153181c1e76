package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/roach88/fam/internal/ir"
)

// Session is the stored header of one ledger.
type Session struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	FirstYear  int    `json:"first_year"`
	LastActual int    `json:"last_actual"`
	LastYear   int    `json:"last_year"`
}

// Run records the settings of one compute over a session.
type Run struct {
	Seq         int64  `json:"seq"`
	SessionID   string `json:"session_id"`
	RuleSetHash string `json:"ruleset_hash"`
	Years       int    `json:"years"`
	BaseProfit  string `json:"base_profit"`
	Cash        string `json:"cash"`
	Rules       string `json:"rules"`
}

// WriteSession stores a session with its account catalog and settled cells.
// An existing session with the same ID keeps its seq; its accounts and cells
// are replaced. New sessions get the next seq.
//
// Accounts are stored in the given order, which is the display order.
func (s *Store) WriteSession(ctx context.Context, sess Session, accounts []ir.Account, cells []ir.Cell) (Session, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := sessionSeq(ctx, tx, sess.ID)
		if err != nil {
			return err
		}
		sess.Seq = seq

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, seq, first_year, last_actual, last_year)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_year = excluded.first_year,
				last_actual = excluded.last_actual,
				last_year = excluded.last_year
		`, sess.ID, sess.Seq, sess.FirstYear, sess.LastActual, sess.LastYear)
		if err != nil {
			return err
		}

		for _, table := range []string{"accounts", "cells"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sess.ID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for i, acc := range accounts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (session_id, position, id, name, statement, parent_id)
				VALUES (?, ?, ?, ?, ?, ?)
			`, sess.ID, i, acc.ID, acc.Name, string(acc.Statement), acc.ParentID)
			if err != nil {
				return fmt.Errorf("account %q: %w", acc.Name, err)
			}
		}

		for _, c := range cells {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO cells (session_id, key, statement, year, account_id, value)
				VALUES (?, ?, ?, ?, ?, ?)
			`, sess.ID, c.Key, string(c.Statement), c.Year, c.AccountID, cellValue(c.Value))
			if err != nil {
				return fmt.Errorf("cell %s: %w", c.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("write session %s: %w", sess.ID, err)
	}
	return sess, nil
}

// cellValue binds NaN as NULL, which is how SQLite stores it anyway.
func cellValue(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// sessionSeq returns the seq already held by id, or the next free one.
func sessionSeq(ctx context.Context, tx *sql.Tx, id string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, `SELECT seq FROM sessions WHERE id = ?`, id).Scan(&seq)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM sessions`).Scan(&seq)
	}
	if err != nil {
		return 0, fmt.Errorf("session seq: %w", err)
	}
	return seq, nil
}

// WriteRun records a compute over sessionID. Uses ON CONFLICT DO NOTHING: an
// identical run (same rule set hash and settings) is written once.
//
// The session must exist (foreign key constraint).
func (s *Store) WriteRun(ctx context.Context, sessionID string, rules *ir.RuleSet, instructions []ir.BalanceInstruction, cfg ir.ComputeConfig) (Run, error) {
	if rules == nil {
		rules = ir.NewRuleSet()
	}
	hash, err := ir.RuleSetHash(rules, instructions)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	rulesJSON, err := marshalRules(rules, instructions)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	run := Run{
		SessionID:   sessionID,
		RuleSetHash: hash,
		Years:       cfg.Years,
		BaseProfit:  cfg.BaseProfitAccount,
		Cash:        cfg.CashAccount,
		Rules:       rulesJSON,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (session_id, ruleset_hash, years, base_profit, cash, rules)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, run.SessionID, run.RuleSetHash, run.Years, run.BaseProfit, run.Cash, run.Rules)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT seq FROM runs
		WHERE session_id = ? AND ruleset_hash = ? AND years = ? AND base_profit = ? AND cash = ?
	`, run.SessionID, run.RuleSetHash, run.Years, run.BaseProfit, run.Cash).Scan(&run.Seq)
	if err != nil {
		return Run{}, fmt.Errorf("write run: read seq: %w", err)
	}
	return run, nil
}
