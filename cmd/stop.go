package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/sevlyar/go-daemon"
	"github.com/urfave/cli/v2"
)

func stop(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	pid, err := daemon.ReadPidFile(cfg.Daemon.PidFile)
	if err != nil {
		return fmt.Errorf("unable to read pid file: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("unable to find process: %w", err)
	}

	if err = process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("unable to signal process: %w", err)
	}

	fmt.Printf("Process with PID %d has been stopped\n", pid)
	return nil
}
