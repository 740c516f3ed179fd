package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	stamper "github.com/jungcome7/pdf-stamper"
)

const uriScheme = "stamper://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "status",
		Name:        "status",
		Description: "The open document, the stamp library and the stamps on the current page",
		MIMEType:    "application/json",
	}, s.handleStatusResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "surface",
		Name:        "surface",
		Description: "The editing surface of the current page with its stamps, as PNG",
		MIMEType:    "image/png",
	}, s.handleSurfaceResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "pages/{page}",
		Name:        "page-preview",
		Description: "Cached preview of a page, as PNG",
		MIMEType:    "image/png",
	}, s.handlePageResource)
}

func (s *Server) handleStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	_, status, err := s.status(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling status: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleSurfaceResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	img, err := s.session.RenderSurface(ctx)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding surface: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "image/png",
			Blob:     buf.Bytes(),
		}},
	}, nil
}

func (s *Server) handlePageResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	page := extractPage(req.Params.URI)
	if page == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	preview, ok := s.session.Preview(page)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	data, mediaType, err := stamper.DecodeDataURL(preview.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("decoding preview of page %d: %w", page, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: mediaType,
			Blob:     data,
		}},
	}, nil
}

// extractPage extracts the page number from a URI like stamper://pages/{page}.
// It returns 0 when the URI does not name a page.
func extractPage(uri string) int {
	const prefix = uriScheme + "pages/"
	if !strings.HasPrefix(uri, prefix) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(uri, prefix))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
