package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/tiles"
)

// TilesHandler serves the catalog as vector tiles.
type TilesHandler struct {
	tiler *tiles.Tiler
}

func NewTilesHandler(t *tiles.Tiler) *TilesHandler {
	return &TilesHandler{tiler: t}
}

func (h *TilesHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("catalog"))
}

type TileInput struct {
	Z uint32 `path:"z" maximum:"22" doc:"Zoom level" example:"14"`
	X uint32 `path:"x" doc:"Tile column" example:"11916"`
	Y uint32 `path:"y" doc:"Tile row" example:"7273"`
}

type TileOutput struct {
	Status       int
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// GetTile returns one Mapbox vector tile, or 204 when nothing falls in it.
func (h *TilesHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	if h.tiler == nil {
		return nil, huma.Error503ServiceUnavailable("tiles not available")
	}
	data, err := h.tiler.Tile(input.Z, input.X, input.Y)
	if errors.Is(err, tiles.ErrOutOfRange) {
		return nil, huma.Error404NotFound(err.Error())
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("tile rendering failed", err)
	}
	out := &TileOutput{Status: http.StatusOK, CacheControl: "public, max-age=3600"}
	if data == nil {
		out.Status = http.StatusNoContent
		return out, nil
	}
	out.ContentType = tiles.ContentType
	out.Body = data
	return out, nil
}
