package cmd

import (
	"fmt"

	"github.com/sevlyar/go-daemon"
	"github.com/urfave/cli/v2"
)

func start(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	cntxt := &daemon.Context{
		PidFileName: cfg.Daemon.PidFile,
		PidFilePerm: 0644,
		LogFileName: cfg.Daemon.LogFile,
		LogFilePerm: 0640,
		WorkDir:     cfg.Daemon.WorkDir,
		Umask:       027,
	}

	d, err := cntxt.Reborn()
	if err != nil {
		return fmt.Errorf("unable to daemonize: %w", err)
	}
	if d != nil {
		fmt.Printf("tunio started with PID %d\n", d.Pid)
		return nil
	}
	defer cntxt.Release()

	return run(c)
}
