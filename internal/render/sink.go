// Package render is the boundary to the globe widget: it turns merged view
// points into markers and delivers them to a sink.
package render

import (
	"context"

	"github.com/okian/globepins/internal/domain/types"
)

// Sink accepts the full marker set and camera focus requests.
type Sink interface {
	Render(ctx context.Context, points []types.Point) error
	Focus(ctx context.Context, f Focus) error
}

// Focus moves the camera to a point and offers the management actions the
// current session may take on it.
type Focus struct {
	Point   types.Point `json:"point"`
	Actions []string    `json:"actions,omitempty"`
}

// Nop discards everything.
type Nop struct{}

func (Nop) Render(context.Context, []types.Point) error { return nil }
func (Nop) Focus(context.Context, Focus) error          { return nil }
