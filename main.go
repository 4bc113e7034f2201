package main

import (
	"github.com/rtbot-platform/rtbot/internal/cmdlets"
)

func main() {
	cmdlets.Entrypoint()
}
