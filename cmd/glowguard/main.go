package main

import (
	"os"

	"glowguard/cmd/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:], os.Stdout, os.Stderr))
}
