// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/basicai/pceditor/internal/geo"
	"github.com/basicai/pceditor/internal/model"
	"github.com/basicai/pceditor/pkg/core"
	"gorm.io/datatypes"
)

// objectGeometry is the kind-specific shape of an object, stored as JSON.
type objectGeometry struct {
	Position core.Vec3  `json:"position"`
	Scale    core.Vec3  `json:"scale"`
	Rotation core.Euler `json:"rotation"`
	ViewID   string     `json:"viewId,omitempty"`
	Center   core.Vec2  `json:"center"`
	Size     core.Vec2  `json:"size"`
	Front    core.Quad  `json:"front"`
	Back     core.Quad  `json:"back"`
}

// mapToJSON converts a map to datatypes.JSON, "{}" for nil.
func mapToJSON(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return datatypes.JSON("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// CoreToObject converts a core.ObjectRecord of frameID to a GORM model.Object.
func CoreToObject(frameID string, rec core.ObjectRecord) (model.Object, error) {
	userData, err := json.Marshal(rec.UserData)
	if err != nil {
		return model.Object{}, fmt.Errorf("object %s user data: %w", rec.UserData.ID, err)
	}
	shape, err := json.Marshal(objectGeometry{
		Position: rec.Position,
		Scale:    rec.Scale,
		Rotation: rec.Rotation,
		ViewID:   rec.ViewID,
		Center:   rec.Center,
		Size:     rec.Size,
		Front:    rec.Front,
		Back:     rec.Back,
	})
	if err != nil {
		return model.Object{}, fmt.Errorf("object %s geometry: %w", rec.UserData.ID, err)
	}
	return model.Object{
		FrameID:      frameID,
		ObjectID:     rec.UserData.ID,
		Kind:         string(rec.Kind),
		TrackID:      rec.UserData.TrackID,
		ClassID:      rec.UserData.ClassID,
		ResultStatus: rec.UserData.ResultStatus,
		ChainID:      rec.UserData.ChainID,
		ChainIndex:   rec.ChainIndex,
		UserData:     datatypes.JSON(userData),
		Geometry:     datatypes.JSON(shape),
	}, nil
}

// CoreToChains builds one model.Chain per chain among the point records of
// a frame, in order of first appearance.
func CoreToChains(records []core.ObjectRecord) []model.Chain {
	byChain := make(map[string][]core.ObjectRecord)
	var order []string
	for _, rec := range records {
		if rec.Kind != core.KindPoint {
			continue
		}
		id := rec.UserData.ChainID
		if _, seen := byChain[id]; !seen {
			order = append(order, id)
		}
		byChain[id] = append(byChain[id], rec)
	}

	chains := make([]model.Chain, 0, len(order))
	for _, id := range order {
		recs := byChain[id]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].ChainIndex < recs[j].ChainIndex })
		points := make([]core.Vec3, len(recs))
		for i, r := range recs {
			points[i] = r.Position
		}
		chains = append(chains, model.Chain{
			ChainID:    id,
			TrackID:    recs[0].UserData.TrackID,
			PointCount: len(points),
			Length:     geo.Length(points),
			Path:       geo.LineString(points).AsGeometry(),
		})
	}
	return chains
}

// CoreToFrameResult converts a core.FrameResult to a GORM model.FrameResult
// with its objects and chains.
func CoreToFrameResult(res core.FrameResult) (model.FrameResult, error) {
	classification, err := mapToJSON(res.Classification)
	if err != nil {
		return model.FrameResult{}, fmt.Errorf("frame %s classification: %w", res.FrameID, err)
	}
	out := model.FrameResult{
		FrameID:        res.FrameID,
		FrameIndex:     res.FrameIndex,
		Classification: classification,
		SavedAt:        res.SavedAt,
		Objects:        make([]model.Object, 0, len(res.Objects)),
		Chains:         CoreToChains(res.Objects),
	}
	if res.Location != nil {
		pt, err := geo.LocationTo3857(*res.Location)
		if err != nil {
			return model.FrameResult{}, fmt.Errorf("frame %s location: %w", res.FrameID, err)
		}
		out.Location = pt
		out.HasLocation = true
	}
	for _, rec := range res.Objects {
		obj, err := CoreToObject(res.FrameID, rec)
		if err != nil {
			return model.FrameResult{}, fmt.Errorf("frame %s: %w", res.FrameID, err)
		}
		out.Objects = append(out.Objects, obj)
	}
	return out, nil
}

// CoreToTracks collects one model.Track per track id from the objects of
// results. The first object seen of a track wins.
func CoreToTracks(results []core.FrameResult) ([]model.Track, error) {
	seen := make(map[string]bool)
	var tracks []model.Track
	for _, res := range results {
		for _, rec := range res.Objects {
			u := rec.UserData
			if u.TrackID == "" || seen[u.TrackID] {
				continue
			}
			seen[u.TrackID] = true
			attrs, err := mapToJSON(u.Attrs)
			if err != nil {
				return nil, fmt.Errorf("track %s attrs: %w", u.TrackID, err)
			}
			tracks = append(tracks, model.Track{
				TrackID:   u.TrackID,
				TrackName: u.TrackName,
				ClassID:   u.ClassID,
				ClassType: u.ClassType,
				Attrs:     attrs,
			})
		}
	}
	return tracks, nil
}
