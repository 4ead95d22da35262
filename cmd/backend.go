package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/foldgen/pkg/config"
	"github.com/denysvitali/foldgen/pkg/editor"
	"github.com/denysvitali/foldgen/pkg/folding"
)

// newComputer builds the configured fold computer. The returned close func
// ends any editor session and must be called once the batch is done.
func newComputer(cfg *config.Config, logger *logrus.Logger) (folding.Computer, func(), error) {
	switch cfg.Fold.Backend {
	case "python", "":
		return folding.Python{OnlyDefinitions: cfg.Fold.OnlyDefinitions}, func() {}, nil
	case "vim":
		session, err := editor.NewSession(cfg.Vim, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start editor session: %w", err)
		}
		return session, func() {
			if err := session.Close(); err != nil {
				logger.Warnf("Failed to close editor session: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", folding.ErrUnknownBackend, cfg.Fold.Backend)
	}
}
