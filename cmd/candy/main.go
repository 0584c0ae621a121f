// Command candy runs commands and records every line they print.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/deixis/candy/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
