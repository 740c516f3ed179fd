// Package mcp serves an editing session over the Model Context Protocol, so
// an assistant can open a document, place stamps and export the result.
//
// # Usage with Claude Desktop
//
// Add to your claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "pdf-stamper": {
//	      "command": "pdf-stamper",
//	      "args": ["mcp"]
//	    }
//	  }
//	}
package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jungcome7/pdf-stamper/session"
)

// ErrMissingSession is returned when no session is provided.
var ErrMissingSession = errors.New("mcp: session is required")

// Server is the MCP server for one editing session.
type Server struct {
	session *session.Session
	server  *mcp.Server
}

// NewServer creates a server exposing sess.
func NewServer(sess *session.Session, version string) (*Server, error) {
	if sess == nil {
		return nil, ErrMissingSession
	}
	impl := &mcp.Implementation{
		Name:    "pdf-stamper",
		Version: version,
	}
	s := &Server{
		session: sess,
		server:  mcp.NewServer(impl, nil),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves over stdio. It blocks until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
