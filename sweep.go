package tuanlite

import (
	"time"
)

// StartSweeper launches the active expire pass. Every SweepInterval each shard evicts at
// most SweepLimit keys whose deadline has passed, earliest first. Keys that are never read
// again after expiring are reclaimed this way instead of leaking.
func (db *DB) StartSweeper() {
	if db.options.SweepInterval <= 0 {
		return
	}
	db.sweepWg.Add(1)
	go func() {
		defer db.sweepWg.Done()
		ticker := time.NewTicker(db.options.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-db.closeCh:
				return
			case <-ticker.C:
				db.sweep()
			}
		}
	}()
}

// sweep runs one bounded pass over all shards and returns the number of evicted keys.
func (db *DB) sweep() int {
	var evicted int
	for _, s := range db.shards {
		s.mu.Lock()
		keys := s.expires.Due(db.now().UnixNano(), db.options.SweepLimit)
		for _, key := range keys {
			s.remove(key)
		}
		s.mu.Unlock()
		evicted += len(keys)
	}
	recordExpired(evicted)
	return evicted
}
