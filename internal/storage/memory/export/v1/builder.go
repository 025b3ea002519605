package v1

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/basicai/pceditor/internal/geo"
	"github.com/basicai/pceditor/pkg/core"
)

// Build creates an Export from saved frame results, sorted by frame index.
// Track records come from the first object of each track unless tracks is
// non-empty.
func Build(results []core.FrameResult, tracks []core.TrackObject, at time.Time) Export {
	frames := append([]core.FrameResult(nil), results...)
	sort.SliceStable(frames, func(i, j int) bool {
		if frames[i].FrameIndex != frames[j].FrameIndex {
			return frames[i].FrameIndex < frames[j].FrameIndex
		}
		return frames[i].FrameID < frames[j].FrameID
	})

	export := Export{
		Version:    Version,
		ExportedAt: at.UTC(),
		FrameCount: len(frames),
		Frames:     frames,
		Tracks:     tracks,
	}

	seen := make(map[string]bool)
	collect := len(tracks) == 0
	for _, f := range frames {
		export.ObjectCount += len(f.Objects)
		export.Chains = append(export.Chains, buildChains(f)...)
		if !collect {
			continue
		}
		for _, o := range f.Objects {
			u := o.UserData
			if u.TrackID == "" || seen[u.TrackID] {
				continue
			}
			seen[u.TrackID] = true
			export.Tracks = append(export.Tracks, core.TrackObject{
				TrackID:   u.TrackID,
				TrackName: u.TrackName,
				ClassID:   u.ClassID,
				ClassType: u.ClassType,
				Attrs:     core.CloneAttrs(u.Attrs),
			})
		}
	}
	if export.Tracks == nil {
		export.Tracks = []core.TrackObject{}
	}
	return export
}

// buildChains lists the point chains of a frame in chain order.
func buildChains(f core.FrameResult) []Chain {
	byChain := make(map[string][]core.ObjectRecord)
	var order []string
	for _, o := range f.Objects {
		if o.Kind != core.KindPoint {
			continue
		}
		if _, ok := byChain[o.UserData.ChainID]; !ok {
			order = append(order, o.UserData.ChainID)
		}
		byChain[o.UserData.ChainID] = append(byChain[o.UserData.ChainID], o)
	}

	out := make([]Chain, 0, len(order))
	for _, id := range order {
		recs := byChain[id]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].ChainIndex < recs[j].ChainIndex })
		points := make([]core.Vec3, len(recs))
		for i, r := range recs {
			points[i] = r.Position
		}
		out = append(out, Chain{
			FrameID: f.FrameID,
			ChainID: id,
			TrackID: recs[0].UserData.TrackID,
			Points:  points,
			Length:  geo.Length(points),
		})
	}
	return out
}

// Write encodes export as JSON, gzipped when compress is set.
func Write(w io.Writer, export Export, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(export)
	}
	gzWriter := gzip.NewWriter(w)
	if err := json.NewEncoder(gzWriter).Encode(export); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

// Read decodes an export written by Write, detecting gzip.
func Read(r io.Reader) (Export, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return Export{}, err
	}

	var src io.Reader = br
	if bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return Export{}, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	var export Export
	if err := json.NewDecoder(src).Decode(&export); err != nil {
		return Export{}, fmt.Errorf("failed to decode export: %w", err)
	}
	if export.Version != Version {
		return Export{}, fmt.Errorf("unsupported export version %d", export.Version)
	}
	return export, nil
}
