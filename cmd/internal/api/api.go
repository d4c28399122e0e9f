package api

import (
	"io"
	"log/slog"

	"glowguard/cmd/internal/apiclient"
)

// Client groups the typed endpoint wrappers.
type Client struct {
	Auth  *Auth
	Users *Users
	Skin  *Skin
}

// New wires every wrapper to c. log may be nil.
func New(c *apiclient.Client, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		Auth:  &Auth{c: c, log: log},
		Users: &Users{c: c},
		Skin:  &Skin{c: c},
	}
}
