package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&EditorInfo{},
	&FrameResult{},
	&Object{},
	&Chain{},
	&Track{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// EditorInfo identifies the schema owner of a results database
type EditorInfo struct {
	gorm.Model
	SchemaVersion int    `json:"schemaVersion" gorm:"default:1"`
	Application   string `json:"application" gorm:"size:64"`
}

func (*EditorInfo) TableName() string {
	return "editor_infos"
}

////////////////////////
// RESULT MODELS
////////////////////////

// FrameResult is the saved annotation state of one frame. A save replaces
// the row and its children.
type FrameResult struct {
	ID             uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	FrameID        string         `json:"frameId" gorm:"size:64;uniqueIndex:idx_frame_result_frame_id"`
	FrameIndex     int            `json:"frameIndex" gorm:"index:idx_frame_result_frame_index"`
	HasLocation    bool           `json:"-"`
	Location       geom.Point     `json:"location"` // ego position, EPSG:3857 with altitude as Z
	Classification datatypes.JSON `json:"classification" gorm:"default:'{}'"`
	SavedAt        time.Time      `json:"savedAt" gorm:"type:timestamptz;"`
	Objects        []Object       `json:"objects" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Chains         []Chain        `json:"chains" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*FrameResult) TableName() string {
	return "frame_results"
}

// Object is one annotation object of a frame. The label fields used for
// lookups get their own columns; the full user data stays in UserData.
type Object struct {
	ID            uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	FrameResultID uint           `json:"frameResultId" gorm:"index:idx_object_frame_result_id"`
	FrameID       string         `json:"frameId" gorm:"size:64;index:idx_object_frame_id"`
	ObjectID      string         `json:"objectId" gorm:"size:64;index:idx_object_object_id"`
	Kind          string         `json:"kind" gorm:"size:16"`
	TrackID       string         `json:"trackId" gorm:"size:64;index:idx_object_track_id"`
	ClassID       string         `json:"classId" gorm:"size:64"`
	ResultStatus  string         `json:"resultStatus" gorm:"size:32"`
	ChainID       string         `json:"chainId" gorm:"size:160"`
	ChainIndex    int            `json:"chainIndex"`
	UserData      datatypes.JSON `json:"userData" gorm:"default:'{}'"`
	Geometry      datatypes.JSON `json:"geometry" gorm:"default:'{}'"` // kind-specific shape: position, scale, rotation, image quads
}

func (*Object) TableName() string {
	return "annotation_objects"
}

// Chain is the polyline formed by the point objects of one chain on a
// frame, in chain order. It is derived on save and not read back.
type Chain struct {
	ID            uint          `json:"id" gorm:"primarykey;autoIncrement;"`
	FrameResultID uint          `json:"frameResultId" gorm:"index:idx_chain_frame_result_id"`
	ChainID       string        `json:"chainId" gorm:"size:160"`
	TrackID       string        `json:"trackId" gorm:"size:64"`
	PointCount    int           `json:"pointCount"`
	Length        float64       `json:"length"`
	Path          geom.Geometry `json:"-"` // LineStringZ of node positions
}

func (*Chain) TableName() string {
	return "chains"
}

// Track is the canonical record of a track as last saved.
type Track struct {
	TrackID   string         `json:"trackId" gorm:"primaryKey;size:64"`
	TrackName string         `json:"trackName" gorm:"size:127"`
	ClassID   string         `json:"classId" gorm:"size:64"`
	ClassType string         `json:"classType" gorm:"size:127"`
	Attrs     datatypes.JSON `json:"attrs" gorm:"default:'{}'"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (*Track) TableName() string {
	return "tracks"
}
