package ingest

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/logs"
)

// Sweeper deletes stale entries from the working-storage directories
// (uploads and detection run dirs), so that they don't accumulate forever.
// If a file is still being streamed to a client when we delete it, the OS
// keeps the content alive until the last handle is closed, so aggressive
// sweeping is harmless.
type Sweeper struct {
	log      logs.Log
	roots    []string
	maxAge   time.Duration
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(log logs.Log, roots []string, maxAge time.Duration) *Sweeper {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Sweeper{
		log:      log,
		roots:    roots,
		maxAge:   maxAge,
		interval: 10 * time.Minute,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.SweepOnce()
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

// SweepOnce removes every top-level entry in the swept roots whose
// modification time is older than maxAge. Returns the number of entries
// removed.
func (s *Sweeper) SweepOnce() int {
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, root := range s.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				full := filepath.Join(root, entry.Name())
				if err := os.RemoveAll(full); err != nil {
					s.log.Warnf("Sweeper failed to remove %v: %v", full, err)
				} else {
					removed++
				}
			}
		}
	}
	if removed != 0 {
		s.log.Infof("Sweeper removed %v stale entries", removed)
	}
	return removed
}
