package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// links maps operation paths to their RFC 8288 Link header values.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/catalog/names>; rel="names"`,
		`</api/v1/sessions/default>; rel="session"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/catalog/issues>; rel="issues"`,
	},
	"/api/v1/catalog/names": {
		`</api/v1/catalog/features>; rel="features"`,
	},
	"/api/v1/catalog/features": {
		`</api/v1/catalog/names>; rel="names"`,
		`</api/v1/tiles/{z}/{x}/{y}>; rel="tiles"`,
	},
	"/api/v1/catalog/features/{name}": {
		`</api/v1/catalog/features>; rel="collection"`,
	},
	"/api/v1/sessions/{id}": {
		`</api/v1/catalog/names>; rel="names"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}

// sessionLinks are added for every per-session path.
var sessionLinks = []string{"selection", "locate", "events"}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if op.Path == "/api/v1/sessions/{id}" {
			base := ctx.URL().Path
			for _, rel := range sessionLinks {
				ctx.AppendHeader("Link", fmt.Sprintf(`<%s/%s>; rel="%s"`, base, rel, rel))
			}
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		return v, nil
	}
}
