// Package stamper overlays raster stamp images onto the pages of an existing
// PDF document.
//
// The root package holds the shared data model, configuration and errors.
// The work is split across subpackages:
//
//   - store: the authoritative, page-indexed record of documents, stamp
//     definitions and placed stamp instances
//   - coords: mapping between the fixed-size editing surface and each page's
//     native coordinate space
//   - pagesync: keeps the disposable editing surface in step with the store
//     across page navigation and asynchronous image decoding
//   - compose: bakes the recorded instances into a new PDF
//   - session: a single-threaded facade tying the above together
package stamper

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// StampDefinition is a reusable stamp image the user can pick.
type StampDefinition struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Image  []byte `json:"-"` // normalized PNG bytes
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// StampInstance is one placement of a stamp on one page. X and Y locate the
// stamp's center in editing-surface space; ScaleX and ScaleY are relative to
// the image's native pixel size. Image is a snapshot of the definition's
// bytes, so deleting the definition leaves the instance intact.
type StampInstance struct {
	ID           string  `json:"id"`
	DefinitionID string  `json:"definition_id"`
	Page         int     `json:"page"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	ScaleX       float64 `json:"scale_x"`
	ScaleY       float64 `json:"scale_y"`
	Image        []byte  `json:"-"`
}

// PageImage is a cached raster preview of one page.
type PageImage struct {
	Page     int    `json:"page"`
	ImageURL string `json:"image_url"`
}

// Document is the loaded PDF: its raw bytes and the page count reported by
// the rasterizer when it was accepted.
type Document struct {
	Name      string
	Data      []byte
	PageCount int
}

// HasPage reports whether n is a valid 1-based page number of d.
func (d *Document) HasPage(n int) bool {
	return d != nil && n >= 1 && n <= d.PageCount
}

// DataURL encodes data as an RFC 2397 data URL.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reverses DataURL. Only base64 payloads are accepted.
func DecodeDataURL(u string) (data []byte, mediaType string, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data URL", ErrInvalidParam)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data URL payload", ErrInvalidParam)
	}
	mediaType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", fmt.Errorf("%w: data URL is not base64", ErrInvalidParam)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return data, mediaType, nil
}
