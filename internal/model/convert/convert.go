package convert

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/basicai/pceditor/internal/geo"
	"github.com/basicai/pceditor/internal/model"
	"github.com/basicai/pceditor/pkg/core"
)

// ObjectToCore converts a GORM model.Object to a core.ObjectRecord.
func ObjectToCore(o model.Object) (core.ObjectRecord, error) {
	rec := core.ObjectRecord{
		Kind:       core.ObjectKind(o.Kind),
		ChainIndex: o.ChainIndex,
	}
	if len(o.UserData) > 0 {
		if err := json.Unmarshal(o.UserData, &rec.UserData); err != nil {
			return core.ObjectRecord{}, fmt.Errorf("object %s user data: %w", o.ObjectID, err)
		}
	}
	if rec.UserData.ID == "" {
		rec.UserData.ID = o.ObjectID
	}
	var shape objectGeometry
	if len(o.Geometry) > 0 {
		if err := json.Unmarshal(o.Geometry, &shape); err != nil {
			return core.ObjectRecord{}, fmt.Errorf("object %s geometry: %w", o.ObjectID, err)
		}
	}
	rec.Position = shape.Position
	rec.Scale = shape.Scale
	rec.Rotation = shape.Rotation
	rec.ViewID = shape.ViewID
	rec.Center = shape.Center
	rec.Size = shape.Size
	rec.Front = shape.Front
	rec.Back = shape.Back
	return rec, nil
}

// FrameResultToCore converts a GORM model.FrameResult to a core.FrameResult.
// Objects keep their insertion order.
func FrameResultToCore(r model.FrameResult) (core.FrameResult, error) {
	out := core.FrameResult{
		FrameID:    r.FrameID,
		FrameIndex: r.FrameIndex,
		SavedAt:    r.SavedAt,
		Objects:    make([]core.ObjectRecord, 0, len(r.Objects)),
	}
	if len(r.Classification) > 0 && string(r.Classification) != "{}" {
		if err := json.Unmarshal(r.Classification, &out.Classification); err != nil {
			return core.FrameResult{}, fmt.Errorf("frame %s classification: %w", r.FrameID, err)
		}
	}
	if r.HasLocation {
		if loc, ok := geo.LocationFrom3857(r.Location); ok {
			out.Location = &loc
		}
	}
	objects := append([]model.Object(nil), r.Objects...)
	sort.SliceStable(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
	for _, o := range objects {
		rec, err := ObjectToCore(o)
		if err != nil {
			return core.FrameResult{}, fmt.Errorf("frame %s: %w", r.FrameID, err)
		}
		out.Objects = append(out.Objects, rec)
	}
	return out, nil
}

// TrackToCore converts a GORM model.Track to a core.TrackObject.
func TrackToCore(t model.Track) (core.TrackObject, error) {
	out := core.TrackObject{
		TrackID:   t.TrackID,
		TrackName: t.TrackName,
		ClassID:   t.ClassID,
		ClassType: t.ClassType,
	}
	if len(t.Attrs) > 0 && string(t.Attrs) != "{}" {
		if err := json.Unmarshal(t.Attrs, &out.Attrs); err != nil {
			return core.TrackObject{}, fmt.Errorf("track %s attrs: %w", t.TrackID, err)
		}
	}
	return out, nil
}
