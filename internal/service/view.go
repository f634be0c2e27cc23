package service

import (
	"github.com/paulmach/orb/geojson"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/camera"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/locate"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/selection"
)

// View is what a renderer needs to draw one session: the overlay to replace,
// where to point the camera, and the location marker.
type View struct {
	Session  string `json:"session" doc:"Session ID" example:"default"`
	Seq      uint64 `json:"seq" doc:"Transition counter, increases with every published view"`
	Selected string `json:"selected" doc:"Selected location name, empty when cleared" example:"D1"`
	Version  string `json:"version" doc:"Content token of the visible set; a new value means the overlay must be replaced" example:"9ae0c81f23d4b5a6"`

	Visible         *geojson.FeatureCollection `json:"visible" doc:"Visible features, main boundary first"`
	Camera          *CameraView                `json:"camera,omitempty" doc:"Camera command for this view, absent when nothing could be framed"`
	MissingBoundary string                     `json:"missingBoundary,omitempty" doc:"Mapped sub-boundary that is not in the catalog"`
	Marker          *locate.Marker             `json:"marker,omitempty" doc:"Location marker, absent until a locate succeeds"`
}

// CameraView is the wire form of a camera.Command. Coordinates are [lat, lon].
type CameraView struct {
	Kind    string      `json:"kind" enum:"fitBounds,flyTo" doc:"Camera operation"`
	Bounds  [][]float64 `json:"bounds,omitempty" doc:"South-west and north-east corners for fitBounds"`
	Padding int         `json:"padding,omitempty" doc:"Fit padding in pixels"`
	Center  []float64   `json:"center,omitempty" doc:"Target for flyTo"`
	Zoom    int         `json:"zoom,omitempty" doc:"Zoom level for flyTo"`
}

// NewCameraView converts a command to its wire form.
func NewCameraView(c camera.Command) *CameraView {
	v := &CameraView{Kind: string(c.Kind)}
	switch c.Kind {
	case camera.FlyTo:
		ll := c.LatLng()
		v.Center = ll[:]
		v.Zoom = c.Zoom
	default:
		sw, ne := c.SouthWest(), c.NorthEast()
		v.Bounds = [][]float64{sw[:], ne[:]}
		v.Padding = c.Padding
	}
	return v
}

func buildView(id string, seq uint64, s selection.State, cmd *camera.Command, marker *locate.Marker) View {
	v := View{
		Session:         id,
		Seq:             seq,
		Selected:        s.Selected,
		Version:         s.Version,
		Visible:         catalog.FeatureCollection(s.Visible),
		MissingBoundary: s.MissingBoundary,
		Marker:          marker,
	}
	if cmd != nil {
		v.Camera = NewCameraView(*cmd)
	}
	return v
}
