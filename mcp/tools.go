package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/upload"
)

// OpenDocumentInput is the input of open_document.
type OpenDocumentInput struct {
	Path string `json:"path" jsonschema:"path to the PDF file to stamp"`
}

// DocumentOutput describes the loaded document.
type DocumentOutput struct {
	Name  string `json:"name"`
	Pages int    `json:"pages"`
	Page  int    `json:"current_page"`
}

// AddStampInput is the input of add_stamp. Exactly one source must be set.
type AddStampInput struct {
	Path   string `json:"path,omitempty" jsonschema:"path to a PNG image"`
	QR     string `json:"qr,omitempty" jsonschema:"text to encode as a QR code stamp"`
	PDF417 string `json:"pdf417,omitempty" jsonschema:"text to encode as a PDF417 barcode stamp"`
}

// StampOutput describes a stamp definition.
type StampOutput struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// IDInput names a stamp definition or a placed stamp.
type IDInput struct {
	ID string `json:"id" jsonschema:"identifier returned when the stamp was added or placed"`
}

// PageInput is the input of go_to_page.
type PageInput struct {
	Page int `json:"page" jsonschema:"1-based page number"`
}

// EmptyInput is used by tools without arguments.
type EmptyInput struct{}

// InstanceOutput describes a placed stamp in surface coordinates.
type InstanceOutput struct {
	ID     string  `json:"id"`
	Stamp  string  `json:"stamp_id"`
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
}

// MoveInput is the input of move_stamp. Coordinates are in surface space,
// origin top-left, and locate the stamp's center.
type MoveInput struct {
	ID     string  `json:"id" jsonschema:"placed stamp identifier"`
	X      float64 `json:"x" jsonschema:"center x on the editing surface"`
	Y      float64 `json:"y" jsonschema:"center y on the editing surface"`
	ScaleX float64 `json:"scale_x" jsonschema:"horizontal scale relative to the image size"`
	ScaleY float64 `json:"scale_y" jsonschema:"vertical scale relative to the image size"`
}

// ResultOutput reports whether a removal found its target.
type ResultOutput struct {
	Removed bool `json:"removed"`
}

// ExportInput is the input of export.
type ExportInput struct {
	Dir string `json:"dir,omitempty" jsonschema:"directory to write the stamped PDF to (default: next to the source)"`
}

// ExportOutput reports a finished export.
type ExportOutput struct {
	Path    string   `json:"path"`
	Pages   int      `json:"pages"`
	Placed  int      `json:"placed"`
	Skipped []string `json:"skipped,omitempty"`
	OffPage []string `json:"off_page,omitempty"`
}

// StatusOutput summarizes the session.
type StatusOutput struct {
	Document  *DocumentOutput  `json:"document,omitempty"`
	State     string           `json:"state"`
	Stamps    []StampOutput    `json:"stamps"`
	Selected  string           `json:"selected,omitempty"`
	MaxStamps int              `json:"max_stamps"`
	OnPage    []InstanceOutput `json:"on_page"`
	Total     int              `json:"total"`
	Dormant   int              `json:"dormant"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "open_document",
		Description: "Open a PDF for stamping. Replaces the open document; placed stamps are kept.",
	}, s.handleOpenDocument)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_stamp",
		Description: "Add a stamp to the library from a PNG file, or generate a QR or PDF417 stamp. At most five stamps are kept.",
	}, s.handleAddStamp)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "remove_stamp",
		Description: "Remove a stamp from the library. Stamps already placed stay on their pages.",
	}, s.handleRemoveStamp)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "select_stamp",
		Description: "Choose the library stamp that place_stamp puts on the page. An empty id clears the choice.",
	}, s.handleSelectStamp)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "go_to_page",
		Description: "Switch the editing surface to another page.",
	}, s.handleGoToPage)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "place_stamp",
		Description: "Place the selected stamp near the bottom-right corner of the current page.",
	}, s.handlePlaceStamp)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "move_stamp",
		Description: "Move and scale a placed stamp on the current page. Coordinates are on the editing surface, origin top-left.",
	}, s.handleMoveStamp)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_stamp",
		Description: "Delete a placed stamp from the current page.",
	}, s.handleDeleteStamp)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "export",
		Description: "Write the document with every placed stamp baked in.",
	}, s.handleExport)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "status",
		Description: "Show the open document, the stamp library and the stamps on the current page.",
	}, s.handleStatus)
}

func (s *Server) handleOpenDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input OpenDocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	data, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, DocumentOutput{}, fmt.Errorf("reading document: %w", err)
	}
	doc, err := s.session.LoadDocument(ctx, input.Path, data)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	if err := s.session.WaitReady(ctx); err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, DocumentOutput{Name: filepath.Base(doc.Name), Pages: doc.PageCount, Page: 1}, nil
}

func (s *Server) handleAddStamp(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AddStampInput,
) (*mcp.CallToolResult, StampOutput, error) {
	var (
		def stamper.StampDefinition
		err error
	)
	switch {
	case input.Path != "":
		var data []byte
		data, err = os.ReadFile(input.Path)
		if err != nil {
			return nil, StampOutput{}, fmt.Errorf("reading stamp: %w", err)
		}
		def, err = s.session.AddStamp(ctx, input.Path, data)
	case input.QR != "":
		def, err = upload.GenerateQR(input.QR, 256)
		if err == nil {
			err = s.session.AddDefinition(ctx, def)
		}
	case input.PDF417 != "":
		def, err = upload.GeneratePDF417(input.PDF417, 4, 2)
		if err == nil {
			err = s.session.AddDefinition(ctx, def)
		}
	default:
		return nil, StampOutput{}, fmt.Errorf("%w: one of path, qr or pdf417 is required", stamper.ErrInvalidParam)
	}
	if err != nil {
		return nil, StampOutput{}, err
	}
	return nil, stampOutput(def), nil
}

func (s *Server) handleRemoveStamp(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IDInput,
) (*mcp.CallToolResult, ResultOutput, error) {
	removed, err := s.session.RemoveStamp(ctx, input.ID)
	return nil, ResultOutput{Removed: removed}, err
}

func (s *Server) handleSelectStamp(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IDInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.session.SelectStamp(ctx, input.ID); err != nil {
		return nil, StatusOutput{}, err
	}
	return s.status(ctx)
}

func (s *Server) handleGoToPage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PageInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.session.GoToPage(ctx, input.Page); err != nil {
		return nil, StatusOutput{}, err
	}
	if err := s.session.WaitReady(ctx); err != nil {
		return nil, StatusOutput{}, err
	}
	return s.status(ctx)
}

func (s *Server) handlePlaceStamp(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, InstanceOutput, error) {
	inst, err := s.session.Place(ctx)
	if err != nil {
		return nil, InstanceOutput{}, err
	}
	return nil, instanceOutput(inst), nil
}

func (s *Server) handleMoveStamp(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MoveInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.session.Transform(ctx, input.ID, input.X, input.Y, input.ScaleX, input.ScaleY); err != nil {
		return nil, StatusOutput{}, err
	}
	return s.status(ctx)
}

func (s *Server) handleDeleteStamp(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IDInput,
) (*mcp.CallToolResult, ResultOutput, error) {
	if err := s.session.SelectInstance(ctx, input.ID); err != nil {
		return nil, ResultOutput{}, err
	}
	removed, err := s.session.DeleteSelected(ctx)
	return nil, ResultOutput{Removed: removed}, err
}

func (s *Server) handleExport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExportInput,
) (*mcp.CallToolResult, ExportOutput, error) {
	snap, err := s.session.Snapshot(ctx)
	if err != nil {
		return nil, ExportOutput{}, err
	}
	out, err := s.session.Export(ctx)
	if err != nil {
		return nil, ExportOutput{}, err
	}
	dir := input.Dir
	if dir == "" && snap.Document != nil {
		dir = filepath.Dir(snap.Document.Name)
	}
	path := filepath.Join(dir, out.Name)
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return nil, ExportOutput{}, fmt.Errorf("writing %s: %w", path, err)
	}

	output := ExportOutput{Path: path, Pages: out.Pages, Placed: out.Placed, OffPage: out.OffPage}
	for _, skip := range out.Skipped {
		output.Skipped = append(output.Skipped, fmt.Sprintf("%s (page %d): %v", skip.InstanceID, skip.Page, skip.Err))
	}
	return nil, output, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return s.status(ctx)
}

func (s *Server) status(ctx context.Context) (*mcp.CallToolResult, StatusOutput, error) {
	snap, err := s.session.Snapshot(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{
		State:     snap.State.String(),
		Stamps:    make([]StampOutput, 0, len(snap.Definitions)),
		Selected:  snap.Selected,
		MaxStamps: snap.MaxStamps,
		OnPage:    make([]InstanceOutput, 0, len(snap.Instances)),
		Total:     snap.Total,
		Dormant:   len(snap.Dormant),
	}
	if snap.Document != nil {
		out.Document = &DocumentOutput{
			Name:  filepath.Base(snap.Document.Name),
			Pages: snap.Document.PageCount,
			Page:  snap.Page,
		}
	}
	for _, def := range snap.Definitions {
		out.Stamps = append(out.Stamps, stampOutput(def))
	}
	for _, inst := range snap.Instances {
		out.OnPage = append(out.OnPage, instanceOutput(inst))
	}
	return nil, out, nil
}

func stampOutput(def stamper.StampDefinition) StampOutput {
	return StampOutput{ID: def.ID, Name: def.Name, Width: def.Width, Height: def.Height}
}

func instanceOutput(inst stamper.StampInstance) InstanceOutput {
	return InstanceOutput{
		ID:     inst.ID,
		Stamp:  inst.DefinitionID,
		Page:   inst.Page,
		X:      inst.X,
		Y:      inst.Y,
		ScaleX: inst.ScaleX,
		ScaleY: inst.ScaleY,
	}
}
