// Command peer runs one node of the simulated gossip network: it
// registers with the bootstrap registry, dials a random sample of the
// returned roster, and then mines and relays blocks until it receives
// SIGINT, at which point it prints its longest-chain summary and exits.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/rkj2096/gossip-protocol/internal/bootstrap"
	"github.com/rkj2096/gossip-protocol/internal/mining"
	"github.com/rkj2096/gossip-protocol/internal/node"
	"github.com/rkj2096/gossip-protocol/internal/peer"
	"github.com/rkj2096/gossip-protocol/internal/session"
	"github.com/rkj2096/gossip-protocol/internal/stats"
)

func main() {
	app := &cli.App{
		Name:      "peer",
		Usage:     "run one node of the gossip-protocol simulation",
		ArgsUsage: "ip:port seed_ip:seed_port hash_power inter_arrival_time random_seed",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "genesis", Aliases: []string{"g"}, Usage: "this peer synthesizes and gossips the START-MINING sentinel"},
			&cli.BoolFlag{Name: "selfish", Usage: "run the selfish-mining strategy instead of honest relay"},
			&cli.IntFlag{Name: "dedup-size", Value: 4096, Usage: "bounded dedup cache entry count"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() < 5 {
		return cli.Exit("expected: ip:port seed_ip:seed_port hash_power inter_arrival_time random_seed", 1)
	}
	selfAddr := c.Args().Get(0)
	registryAddr := c.Args().Get(1)
	hashPower, err := strconv.ParseFloat(c.Args().Get(2), 64)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "parse hash_power"), 1)
	}
	interArrivalSecs, err := strconv.Atoi(c.Args().Get(3))
	if err != nil {
		return cli.Exit(errors.Wrap(err, "parse inter_arrival_time"), 1)
	}
	seed, err := strconv.ParseInt(c.Args().Get(4), 10, 64)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "parse random_seed"), 1)
	}

	logger := logrus.New()
	auditPath := fmt.Sprintf("outputfile_%s.txt", portOf(selfAddr))
	auditFile, err := os.Create(auditPath)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "create audit file"), 1)
	}
	defer auditFile.Close()
	logger.AddHook(peer.NewFileAuditHook(auditFile))
	log := logger.WithFields(logrus.Fields{"node_id": selfAddr, "component": "peer"})

	audit := func(peerID string, msg []byte) {
		peer.AuditMessage(log, peerID, msg)
	}

	n := node.New(selfAddr, log, c.Bool("selfish"), c.Int("dedup-size"), audit)

	roster, err := bootstrap.Fetch(registryAddr, selfAddr)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "bootstrap registry"), 1)
	}

	ln, err := n.Peers.Listen(selfAddr)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "bind"), 1)
	}
	go n.Peers.Accept(ln)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := mining.New(n, log, hashPower, time.Duration(interArrivalSecs)*time.Second, seed, c.Bool("selfish"))
	n.OnStartMining = func() {
		go m.Run(ctx)
	}

	r := rand.New(rand.NewSource(seed))
	peers := session.ChoosePeers(roster, selfAddr, r)
	if err := session.Bootstrap(n, peers, c.Bool("genesis")); err != nil {
		log.WithError(err).Warn("session bootstrap dial failed")
	}

	<-ctx.Done()
	printSummary(n)
	return nil
}

func printSummary(n *node.Node) {
	s := stats.Summarize(n.Tree, n.IsOwn)
	c := color.New(color.FgGreen, color.Bold)
	c.Printf("peer %s exiting\n", n.SelfID)
	fmt.Printf("  total blocks seen : %d\n", s.TotalBlocks)
	fmt.Printf("  tree depth        : %d\n", s.Depth)
	fmt.Printf("  longest chain len : %d\n", s.LongestChainLen)
	fmt.Printf("  own blocks in it  : %d\n", s.OwnBlocksInChain)
}

func portOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return addr
}
