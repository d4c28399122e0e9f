package app

import (
	"context"
	"io"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/glowguard.
// It returns the process exit code instead of calling os.Exit to keep defers effective.
func Run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := LoadDotEnv(); err != nil {
		writeLine(stderr, "glowguard: .env: "+err.Error())
		return 1
	}
	cfg, err := LoadConfig()
	if err != nil {
		writeLine(stderr, "glowguard: "+err.Error())
		return 1
	}
	return Main(ctx, cfg, args, stdout, stderr)
}

func writeLine(w io.Writer, s string) {
	_, _ = io.WriteString(w, s+"\n")
}
