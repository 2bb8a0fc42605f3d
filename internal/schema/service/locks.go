package service

import (
	"sync"

	"docextract/internal/schema/models"
)

// lineageLocks hands out one mutex per lineage so writes to different
// lineages proceed in parallel while writes within a lineage serialize.
// Locks are never evicted; the set of lineages is small and bounded by the
// document types the deployment actually sees.
type lineageLocks struct {
	mu    sync.Mutex
	locks map[models.Lineage]*sync.Mutex
}

func newLineageLocks() *lineageLocks {
	return &lineageLocks{locks: make(map[models.Lineage]*sync.Mutex)}
}

// lock acquires the lineage's mutex and returns its unlock function.
func (l *lineageLocks) lock(lineage models.Lineage) func() {
	l.mu.Lock()
	m, ok := l.locks[lineage]
	if !ok {
		m = &sync.Mutex{}
		l.locks[lineage] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
