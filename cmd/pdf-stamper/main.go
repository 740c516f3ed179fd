// Command pdf-stamper places image stamps on the pages of a PDF.
//
// # Installation
//
//	go install github.com/jungcome7/pdf-stamper/cmd/pdf-stamper@latest
//
// # Usage
//
//	pdf-stamper info contract.pdf
//	pdf-stamper edit contract.pdf --stamp seal.png --watch
//	pdf-stamper apply job.toml -o signed.pdf
//	pdf-stamper mcp
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jungcome7/pdf-stamper/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
