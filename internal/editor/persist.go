package editor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/basicai/pceditor/internal/annotate"
	"github.com/basicai/pceditor/internal/chain"
	"github.com/basicai/pceditor/pkg/core"
)

// FrameResult builds the saved form of one frame. Point records carry the
// node position and its place in the chain.
func (e *Editor) FrameResult(frame core.Frame) core.FrameResult {
	res := core.FrameResult{
		FrameID:    frame.ID,
		FrameIndex: frame.Index,
		Location:   frame.Location,
		Objects:    []core.ObjectRecord{},
		SavedAt:    time.Now().UTC(),
	}
	order := make(map[chain.ChainID]map[chain.NodeID]int)
	for _, o := range e.index.Frame(frame.ID) {
		rec := o.Record()
		if p, ok := o.(*annotate.PointNode); ok {
			n, err := e.chains.Node(p.Node)
			if err != nil {
				e.logger.Warn("point without chain node skipped", "id", p.ID(), "error", err)
				continue
			}
			rec.Position = n.Position
			pos, ok := order[p.Chain]
			if !ok {
				pos = make(map[chain.NodeID]int)
				ids, _ := e.chains.Nodes(p.Chain)
				for i, id := range ids {
					pos[id] = i
				}
				order[p.Chain] = pos
			}
			rec.ChainIndex = pos[p.Node]
		}
		res.Objects = append(res.Objects, rec)
	}
	return res
}

// Save writes every dirty frame to the store. Frames left without objects
// are sent as deletions. needSave is cleared only after the store accepted
// the batch.
func (e *Editor) Save(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	dirty := e.DirtyFrames()
	if len(dirty) == 0 {
		return nil
	}

	var results []core.FrameResult
	var deleted []string
	for _, f := range dirty {
		res := e.FrameResult(f)
		if len(res.Objects) == 0 {
			deleted = append(deleted, f.ID)
			continue
		}
		results = append(results, res)
	}

	if err := e.store.SaveResults(ctx, results, deleted); err != nil {
		return fmt.Errorf("saving %d frames: %w", len(dirty), err)
	}
	for _, f := range dirty {
		e.frames[e.frameByID[f.ID]].NeedSave = false
	}
	e.logger.Info("results saved", "frames", len(results), "deleted", len(deleted))
	return nil
}

// Load replaces the session content with the stored results of every
// frame. History is cleared. When the stored results cannot be restored the
// session is left untouched.
func (e *Editor) Load(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	ids := make([]string, len(e.frames))
	for i, f := range e.frames {
		ids[i] = f.ID
	}
	results, err := e.store.LoadResults(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading results: %w", err)
	}
	return e.Restore(results)
}

// stagedFrame is one frame of saved results, checked and ready to apply.
type stagedFrame struct {
	frameID    string
	objects    []annotate.Object
	records    []core.ObjectRecord
	chains     map[string][]core.ObjectRecord
	chainOrder []string
}

// stage checks every record without touching the session, so a bad result
// set leaves the editor as it was.
func (e *Editor) stage(results []core.FrameResult) ([]stagedFrame, error) {
	ids := make(map[string]string)
	claim := func(frameID string, rec core.ObjectRecord) error {
		id := rec.UserData.ID
		if id == "" {
			return nil
		}
		if other, dup := ids[id]; dup {
			return fmt.Errorf("frame %s: %w: object %s already in frame %s", frameID, annotate.ErrInvalidArgument, id, other)
		}
		ids[id] = frameID
		return nil
	}

	var staged []stagedFrame
	for _, res := range results {
		if _, ok := e.frameByID[res.FrameID]; !ok {
			e.logger.Warn("result for unknown frame skipped", "frame", res.FrameID)
			continue
		}
		sf := stagedFrame{frameID: res.FrameID, chains: make(map[string][]core.ObjectRecord)}
		for _, rec := range res.Objects {
			if err := claim(res.FrameID, rec); err != nil {
				return nil, err
			}
			if rec.Kind == core.KindPoint || rec.UserData.IsPoint {
				cid := rec.UserData.ChainID
				if cid == "" {
					cid = string(lineChain(res.FrameID, rec.UserData.TrackID))
				}
				if _, seen := sf.chains[cid]; !seen {
					sf.chainOrder = append(sf.chainOrder, cid)
				}
				sf.chains[cid] = append(sf.chains[cid], rec)
				continue
			}
			obj, err := annotate.FromRecord(res.FrameID, rec)
			if err != nil {
				return nil, fmt.Errorf("frame %s: %w", res.FrameID, err)
			}
			sf.objects = append(sf.objects, obj)
			sf.records = append(sf.records, rec)
		}
		staged = append(staged, sf)
	}
	return staged, nil
}

// Restore rebuilds objects, chains and track records from saved results
// without recording history. Results are checked first; on error the
// session is unchanged.
func (e *Editor) Restore(results []core.FrameResult) error {
	staged, err := e.stage(results)
	if err != nil {
		return err
	}
	e.Reset()

	tracks := make(map[string]core.TrackObject)
	note := func(u core.UserData) {
		if u.TrackID == "" {
			return
		}
		if _, ok := tracks[u.TrackID]; ok {
			return
		}
		tracks[u.TrackID] = core.TrackObject{
			TrackID:   u.TrackID,
			TrackName: u.TrackName,
			ClassID:   u.ClassID,
			ClassType: u.ClassType,
			Attrs:     core.CloneAttrs(u.Attrs),
		}
	}

	cur := e.CurrentFrameID()
	for _, sf := range staged {
		for i, obj := range sf.objects {
			if err := e.index.Add(obj); err != nil {
				return fmt.Errorf("frame %s: %w", sf.frameID, err)
			}
			e.show(obj)
			note(sf.records[i].UserData)
		}

		for _, cid := range sf.chainOrder {
			recs := sf.chains[cid]
			sort.SliceStable(recs, func(i, j int) bool { return recs[i].ChainIndex < recs[j].ChainIndex })
			e.chains.SetChainShown(chain.ChainID(cid), sf.frameID == cur)
			for _, rec := range recs {
				node, err := e.chains.AppendPoint(chain.ChainID(cid), rec.Position)
				if err != nil {
					return fmt.Errorf("frame %s chain %s: %w", sf.frameID, cid, err)
				}
				obj, err := e.model.CreatePoint(sf.frameID, annotate.PointParams{Chain: chain.ChainID(cid), Node: node}, rec.UserData)
				if err != nil {
					return fmt.Errorf("frame %s chain %s: %w", sf.frameID, cid, err)
				}
				if err := e.index.Add(obj); err != nil {
					return fmt.Errorf("frame %s: %w", sf.frameID, err)
				}
				note(rec.UserData)
			}
		}
	}

	list := make([]core.TrackObject, 0, len(tracks))
	for _, t := range tracks {
		list = append(list, t)
	}
	e.tracks.Load(list)
	e.UpdateIDCounter()
	for _, fid := range e.index.Frames() {
		for _, o := range e.index.Frame(fid) {
			annotate.ApplyClassColor(o, e.classes)
		}
	}
	for i := range e.frames {
		e.frames[i].NeedSave = false
	}
	e.scene.Render()
	e.logger.Info("results loaded", "frames", len(staged), "objects", e.index.Len())
	return nil
}
