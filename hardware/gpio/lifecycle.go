package gpio

import (
	"os"
	"os/signal"
	"syscall"
)

// registerExitHook frees the engine when the process is told to stop, then
// re-raises the signal so the process still dies the way it was asked to.
func (e *Engine) registerExitHook() {
	e.exitOnce.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			sig := <-sigs
			e.logger.WithField("signal", sig.String()).Info("freeing gpio before exit")

			if err := e.Free(); err != nil {
				e.logger.Warnf("unable to free gpio: %s", err)
			}

			signal.Stop(sigs)
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(sig)
			}
		}()
	})
}
