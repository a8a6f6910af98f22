//go:build !linux

package daemon

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/tilecomp/internal/config"
)

func openX11(*config.Config, *slog.Logger) (*backend, error) {
	return nil, fmt.Errorf("the x11 backend is only available on linux; set backend: headless")
}
