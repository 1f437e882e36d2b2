// market/precision.go
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rustyeddy/tradehook/broker"
)

// InstrumentSource is the slice of the broker gateway the precision cache
// needs: the full instrument list for a trading mode.
type InstrumentSource interface {
	GetInstruments(ctx context.Context, mode broker.Mode) ([]broker.Instrument, error)
}

// PrecisionCache maps instrument names to their price display precision.
//
// The mapping is fetched from the broker once per mode and persisted as a
// JSON snapshot. An existing snapshot is never refreshed automatically —
// precision effectively never changes — so deleting the file is the way to
// force a refetch. First-time fetches are serialized with singleflight so
// concurrent cold requests do not race on writing the snapshot.
type PrecisionCache struct {
	dir    string
	source InstrumentSource

	mu    sync.RWMutex
	modes map[broker.Mode]map[string]int
	sf    singleflight.Group
}

// NewPrecisionCache creates a cache persisting its snapshots under dir, one
// file per mode.
func NewPrecisionCache(dir string, source InstrumentSource) *PrecisionCache {
	return &PrecisionCache{
		dir:    dir,
		source: source,
		modes:  make(map[broker.Mode]map[string]int),
	}
}

// Precision returns the price precision for instrument in the given mode,
// loading or fetching the per-mode snapshot on first use.
func (c *PrecisionCache) Precision(ctx context.Context, instrument string, mode broker.Mode) (int, error) {
	precisions, err := c.precisions(ctx, mode)
	if err != nil {
		return 0, err
	}
	p, ok := precisions[instrument]
	if !ok {
		return 0, fmt.Errorf("no precision for instrument %q", instrument)
	}
	return p, nil
}

// Refresh fetches the instrument list and rewrites the snapshot for mode,
// regardless of any existing file. Used by the instruments CLI command.
func (c *PrecisionCache) Refresh(ctx context.Context, mode broker.Mode) (map[string]int, error) {
	precisions, err := c.fetchAndPersist(ctx, mode)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.modes[mode] = precisions
	c.mu.Unlock()
	return precisions, nil
}

func (c *PrecisionCache) precisions(ctx context.Context, mode broker.Mode) (map[string]int, error) {
	c.mu.RLock()
	precisions, ok := c.modes[mode]
	c.mu.RUnlock()
	if ok {
		return precisions, nil
	}

	// Collapse concurrent cold loads for the same mode into one fetch.
	v, err, _ := c.sf.Do(string(mode), func() (any, error) {
		c.mu.RLock()
		cached, ok := c.modes[mode]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := c.load(mode)
		if os.IsNotExist(err) {
			loaded, err = c.fetchAndPersist(ctx, mode)
		}
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.modes[mode] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]int), nil
}

func (c *PrecisionCache) fetchAndPersist(ctx context.Context, mode broker.Mode) (map[string]int, error) {
	instruments, err := c.source.GetInstruments(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("fetch instruments: %w", err)
	}

	precisions := make(map[string]int, len(instruments))
	for _, in := range instruments {
		precisions[in.Name] = in.Precision
	}

	if err := c.persist(mode, precisions); err != nil {
		return nil, fmt.Errorf("persist precision snapshot: %w", err)
	}
	return precisions, nil
}

func (c *PrecisionCache) snapshotPath(mode broker.Mode) string {
	return filepath.Join(c.dir, fmt.Sprintf("price_precisions_%s.json", mode))
}

func (c *PrecisionCache) load(mode broker.Mode) (map[string]int, error) {
	data, err := os.ReadFile(c.snapshotPath(mode))
	if err != nil {
		return nil, err
	}
	precisions := make(map[string]int)
	if err := json.Unmarshal(data, &precisions); err != nil {
		return nil, fmt.Errorf("parse precision snapshot: %w", err)
	}
	return precisions, nil
}

func (c *PrecisionCache) persist(mode broker.Mode, precisions map[string]int) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(precisions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.snapshotPath(mode), data, 0o644)
}
