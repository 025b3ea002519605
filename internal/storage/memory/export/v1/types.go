// Package v1 contains the v1 export format for saved annotation results.
package v1

import (
	"time"

	"github.com/basicai/pceditor/pkg/core"
)

// Version is written to every v1 export.
const Version = 1

// Export is the root JSON structure for v1 format
type Export struct {
	Version     int                `json:"version"`
	ExportedAt  time.Time          `json:"exportedAt"`
	FrameCount  int                `json:"frameCount"`
	ObjectCount int                `json:"objectCount"`
	Tracks      []core.TrackObject `json:"tracks"`
	Frames      []core.FrameResult `json:"frames"`
	Chains      []Chain            `json:"chains,omitempty"`
}

// Chain summarizes one point chain of a frame.
type Chain struct {
	FrameID string      `json:"frameId"`
	ChainID string      `json:"chainId"`
	TrackID string      `json:"trackId"`
	Points  []core.Vec3 `json:"points"`
	Length  float64     `json:"length"`
}
