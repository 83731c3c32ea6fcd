// Command registry runs the bootstrap registry service: it accepts one
// short-lived session per peer and hands back the roster of peers
// registered before it. On SIGINT it checkpoints the roster to disk and
// exits cleanly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/rkj2096/gossip-protocol/internal/registry"
)

const defaultResumeFile = "client_list.gob"

func main() {
	app := &cli.App{
		Name:      "registry",
		Usage:     "run the bootstrap registry for the gossip-protocol simulation",
		ArgsUsage: "ip port",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "resume", Usage: "reload a roster checkpoint written by a prior run"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return cli.Exit("expected: ip port", 1)
	}
	ip := c.Args().Get(0)
	port := c.Args().Get(1)
	addr := fmt.Sprintf("%s:%s", ip, port)

	log := logrus.WithFields(logrus.Fields{"node_id": addr, "component": "registry"})

	s, err := registry.New(log, c.String("resume"))
	if err != nil {
		return cli.Exit(errors.Wrap(err, "load resume file"), 1)
	}

	ln, err := s.Listen(addr)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "bind"), 1)
	}
	go s.Serve(ln)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	ln.Close()
	resumePath := c.String("resume")
	if resumePath == "" {
		resumePath = defaultResumeFile
	}
	if err := s.Save(resumePath); err != nil {
		log.WithError(err).Error("failed to checkpoint roster")
		return cli.Exit(err, 1)
	}
	log.Info("registry exiting cleanly")
	return nil
}
