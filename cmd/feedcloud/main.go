package main

import (
	"feedcloud/cmd/feedcloud/commands"
	"feedcloud/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
