package compiler

import (
	"fmt"
	"os"
	"sync"
)

// Transaction tracks the object files a batch has written so far so they can
// be torn back down if a later file in the same batch fails to write. Every
// recorded path is a freshly created output (WriteUnit never overwrites an
// existing object in place, it renames a temp file onto the final path), so
// rollback is always a plain removal rather than a restore-from-backup.
type Transaction struct {
	mu      sync.Mutex
	created []string
	done    bool
}

// NewTransaction starts tracking a fresh set of output writes.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// Record marks path as created by this transaction.
func (tx *Transaction) Record(path string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.created = append(tx.created, path)
}

// Commit finalizes the transaction; nothing further can be rolled back
// through it.
func (tx *Transaction) Commit() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.done = true
}

// Rollback removes every output recorded since the last Commit, in reverse
// write order, and reports any removal failures together rather than
// stopping at the first one so a caller sees the full cleanup picture.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return fmt.Errorf("compiler: transaction already committed")
	}

	var errs []string
	for i := len(tx.created) - 1; i >= 0; i-- {
		path := tx.created[i]
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
		}
	}
	tx.created = nil

	if len(errs) > 0 {
		return fmt.Errorf("compiler: rollback left %d object(s) behind: %v", len(errs), errs)
	}
	return nil
}

// WriteAllOrNothing writes every successfully compiled result's object file
// through WriteUnit, tracking each write in a Transaction. If any write
// fails, every object already written in this call is rolled back (removed)
// before the error is returned, giving the batch all-or-nothing semantics
// across its output files rather than the per-file atomicity WriteUnit
// alone provides. Results carrying a compile error (no Unit.Obj) are
// skipped; the caller is expected to have already reported their
// diagnostics. outputFor maps a result's input path to its destination
// object path, the same role config.Config.OutputFor plays for a plain
// per-file write.
func WriteAllOrNothing(results []Result, outputFor func(input string) string) error {
	tx := NewTransaction()
	for _, r := range results {
		if r.Err != nil || r.Unit.Diags.HasErrors() {
			continue
		}
		out := outputFor(r.Input)
		if err := WriteUnit(r.Unit, out); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("%w (and: %v)", err, rbErr)
			}
			return err
		}
		tx.Record(out)
	}
	tx.Commit()
	return nil
}
