package ledger

import "context"

// journal is an undo log. Entries are deltas, so undoing them leaves changes
// recorded elsewhere intact.
type journal struct {
	entries []journalEntry
	depth   int
}

type scopeKey struct{ l *Ledger }

// Checkpoint opens an undo scope covering every change to the ledger until the
// matching Commit or RevertTo. Use it for a ledger with a single owner; shared
// ledgers want CheckpointContext.
func (l *Ledger) Checkpoint() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.global.depth++
	return len(l.global.entries)
}

// RevertTo undoes every change recorded since the checkpoint id and closes it.
func (l *Ledger) RevertTo(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revertLocked(&l.global, id)
}

// Commit closes the checkpoint id keeping its changes. Changes stay revertible
// by an enclosing checkpoint until the outermost one commits.
func (l *Ledger) Commit(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commitLocked(&l.global)
}

// CheckpointContext opens an undo scope owned by the returned context. Only
// transfers made with that context, or one derived from it, are journaled, so
// reverting never touches what other callers did meanwhile. Called with a
// context that already owns a scope it nests inside it.
func (l *Ledger) CheckpointContext(ctx context.Context) (context.Context, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if j := l.scope(ctx); j != nil {
		j.depth++
		return ctx, len(j.entries)
	}
	return context.WithValue(ctx, scopeKey{l}, &journal{depth: 1}), 0
}

// RevertContext undoes the changes ctx's scope recorded since id.
func (l *Ledger) RevertContext(ctx context.Context, id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if j := l.scope(ctx); j != nil {
		l.revertLocked(j, id)
	}
}

// CommitContext closes the checkpoint id of ctx's scope keeping its changes.
func (l *Ledger) CommitContext(ctx context.Context, id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if j := l.scope(ctx); j != nil {
		l.commitLocked(j)
	}
}

func (l *Ledger) scope(ctx context.Context) *journal {
	if ctx == nil {
		return nil
	}
	j, _ := ctx.Value(scopeKey{l}).(*journal)
	return j
}

func (l *Ledger) revertLocked(j *journal, id int) {
	if j.depth == 0 || id < 0 || id > len(j.entries) {
		return
	}
	entries := j.entries[id:]
	j.entries = j.entries[:id]
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch e.kind {
		case entryBalance:
			l.balances[e.owner] = l.balanceLocked(e.owner).Sub(e.delta)
		case entrySupply:
			l.supply = l.supply.Sub(e.delta)
		case entryAllowance:
			l.allowances[e.owner][e.spender] = l.allowanceLocked(e.owner, e.spender).Sub(e.delta)
		}
	}
	l.commitLocked(j)
}

func (l *Ledger) commitLocked(j *journal) {
	if j.depth == 0 {
		return
	}
	j.depth--
	if j.depth == 0 {
		j.entries = j.entries[:0]
	}
}

// record journals e in the scope j when one is open, otherwise in the
// ledger-wide journal when that is open.
func (l *Ledger) record(j *journal, e journalEntry) {
	switch {
	case j != nil && j.depth > 0:
		j.entries = append(j.entries, e)
	case l.global.depth > 0:
		l.global.entries = append(l.global.entries, e)
	}
}
