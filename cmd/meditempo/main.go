// Command meditempo queries and maintains the medication catalog from the
// shell, against the same storage the server uses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MLotfy88/Medi-Tempo/cli"
)

func main() {
	// A missing .env is fine, the environment alone may be enough
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()

	os.Exit(code)
}
