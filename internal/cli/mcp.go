package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jungcome7/pdf-stamper/mcp"
	"github.com/jungcome7/pdf-stamper/session"
)

var mcpDocument string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server over stdio so an AI assistant
can load documents, place stamps and export.

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "pdf-stamper": {
        "command": "/path/to/pdf-stamper",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVarP(&mcpDocument, "document", "d", "", "document to open on start")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := session.New(ctx, appConfig)
	if err != nil {
		return err
	}
	defer sess.Close()

	if mcpDocument != "" {
		data, err := os.ReadFile(mcpDocument)
		if err != nil {
			return err
		}
		if _, err := sess.LoadDocument(ctx, mcpDocument, data); err != nil {
			return err
		}
	}

	server, err := mcp.NewServer(sess, version)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
