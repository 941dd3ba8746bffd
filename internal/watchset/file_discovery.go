package watchset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// FileDiscovery reads the watched-wallet set from a JSON file produced by
// the offline discovery job. The file is an array of
// {"address", "confidence", "source"} records.
type FileDiscovery struct {
	path string
}

func NewFileDiscovery(path string) *FileDiscovery {
	return &FileDiscovery{path: path}
}

func (d *FileDiscovery) RefreshWatchSet(_ context.Context) ([]domain.WatchedWallet, error) {
	raw, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist %s: %w", d.path, err)
	}

	var wallets []domain.WatchedWallet
	if err := json.Unmarshal(raw, &wallets); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", d.path, err)
	}

	filtered := wallets[:0]
	for _, w := range wallets {
		if w.Address == "" || w.Confidence < 0 || w.Confidence > 1 {
			continue
		}
		filtered = append(filtered, w)
	}
	return filtered, nil
}
