package daemon

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"dvrmanager/internal/logging"
)

// Run starts the daemon and blocks until a termination signal or context
// cancellation. SIGHUP triggers a configuration reload; SIGINT and SIGTERM
// drain in-flight work and stop.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGHUP, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			d.Stop("context cancelled")
			return ctx.Err()
		case sig := <-sigCh:
			switch sig {
			case unix.SIGHUP:
				d.logger.Info("reload requested")
				if err := d.Reload(ctx); err != nil {
					d.logger.Warn("reload failed", logging.Error(err))
				}
			default:
				d.Stop("signal " + sig.String())
				return nil
			}
		}
	}
}
