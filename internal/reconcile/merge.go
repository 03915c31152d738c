package reconcile

import (
	"github.com/okian/globepins/internal/domain/dedupe"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/internal/domain/types"
)

// Merge builds the render-ready view. Pinned records come first in snapshot
// order; overlay entries follow only for keys no pinned record holds. Within
// each source the first record for a key wins.
func Merge(pinned []model.CityRecord, overlay []model.OverlayRecord, showOverlay bool) []types.Point {
	seen := dedupe.New(dedupe.WithCapacity(len(pinned) + len(overlay)))
	out := make([]types.Point, 0, len(pinned)+len(overlay))

	for _, r := range pinned {
		p := types.FromCity(r, types.SourcePinned)
		if seen.SeenAndRecord(p.Key) {
			continue
		}
		out = append(out, p)
	}
	if !showOverlay {
		return out
	}
	for _, o := range overlay {
		p := types.FromOverlay(o)
		if seen.SeenAndRecord(p.Key) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Catalog converts a full collection snapshot into points, dropping repeated
// keys.
func Catalog(recs []model.CityRecord) []types.Point {
	seen := dedupe.New(dedupe.WithCapacity(len(recs)))
	out := make([]types.Point, 0, len(recs))
	for _, r := range recs {
		p := types.FromCity(r, types.SourceCatalog)
		if seen.SeenAndRecord(p.Key) {
			continue
		}
		out = append(out, p)
	}
	return out
}
