package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func validatePreference(visitorID, kind string, number int) error {
	if strings.TrimSpace(visitorID) == "" {
		return fmt.Errorf("visitorID must be non-empty")
	}
	if kind == "" {
		return fmt.Errorf("kind must be non-empty")
	}
	if number < 1 || number > 1330 {
		return fmt.Errorf("kural number %d out of range", number)
	}
	return nil
}

// TogglePreference flips membership of number in the visitor's set and
// returns the new membership.
func TogglePreference(db DBExecutor, visitorID, kind string, number int) (bool, error) {
	if err := validatePreference(visitorID, kind, number); err != nil {
		return false, err
	}
	res, err := db.Exec(`DELETE FROM preferences WHERE visitor_id = ? AND kind = ? AND kural_number = ?`,
		visitorID, kind, number)
	if err != nil {
		return false, fmt.Errorf("delete preference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := db.Exec(`INSERT INTO preferences (visitor_id, kind, kural_number, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`, visitorID, kind, number, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("insert preference: %w", err)
	}
	return true, nil
}

// SetPreference forces membership on or off.
func SetPreference(db DBExecutor, visitorID, kind string, number int, on bool) error {
	if err := validatePreference(visitorID, kind, number); err != nil {
		return err
	}
	var err error
	if on {
		_, err = db.Exec(`INSERT INTO preferences (visitor_id, kind, kural_number, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING`, visitorID, kind, number, time.Now().UTC())
	} else {
		_, err = db.Exec(`DELETE FROM preferences WHERE visitor_id = ? AND kind = ? AND kural_number = ?`,
			visitorID, kind, number)
	}
	return err
}

// HasPreference reports whether number is in the visitor's set.
func HasPreference(db DBExecutor, visitorID, kind string, number int) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM preferences WHERE visitor_id = ? AND kind = ? AND kural_number = ?`,
		visitorID, kind, number).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPreferences returns the visitor's couplet numbers in ascending order.
func ListPreferences(db DBExecutor, visitorID, kind string) ([]int, error) {
	rows, err := db.Query(`SELECT kural_number FROM preferences WHERE visitor_id = ? AND kind = ? ORDER BY kural_number`,
		visitorID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveExplanation inserts or replaces the stored explanation for a couplet.
func SaveExplanation(db DBExecutor, number int, model, payload string) error {
	if number < 1 || number > 1330 {
		return fmt.Errorf("kural number %d out of range", number)
	}
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("payload must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO explanations (kural_number, model, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(kural_number) DO UPDATE SET
		  model = excluded.model,
		  payload = excluded.payload,
		  created_at = excluded.created_at`, number, model, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert explanation: %w", err)
	}
	return nil
}

// GetExplanation returns the stored explanation or ErrNotFound.
func GetExplanation(db DBExecutor, number int) (Explanation, error) {
	var e Explanation
	var model sql.NullString
	err := db.QueryRow(`SELECT kural_number, model, payload, created_at FROM explanations WHERE kural_number = ?`, number).
		Scan(&e.KuralNumber, &model, &e.Payload, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return Explanation{}, fmt.Errorf("explanation %d: %w", number, ErrNotFound)
	}
	if err != nil {
		return Explanation{}, err
	}
	if model.Valid {
		e.Model = model.String
	}
	return e, nil
}

// ExplainedNumbers returns the set of couplets that already have an explanation.
func ExplainedNumbers(db DBExecutor) (map[int]bool, error) {
	rows, err := db.Query(`SELECT kural_number FROM explanations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int]bool)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = true
	}
	return out, rows.Err()
}

// GetProgress returns the last couplet number committed by a warm-up run, or 0.
func GetProgress(db DBExecutor, run string) (int, error) {
	var last int
	err := db.QueryRow(`SELECT last_number FROM warm_progress WHERE run = ?`, run).Scan(&last)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last, nil
}

// UpdateProgress records the last committed couplet number for a run.
func UpdateProgress(db DBExecutor, run string, last int) error {
	_, err := db.Exec(`INSERT INTO warm_progress (run, last_number, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(run) DO UPDATE SET last_number = excluded.last_number, updated_at = excluded.updated_at`,
		run, last, time.Now().UTC())
	return err
}
