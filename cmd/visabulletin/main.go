package main

import (
	"visabulletin/cmd/visabulletin/commands"
	"visabulletin/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
