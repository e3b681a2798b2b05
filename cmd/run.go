package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/am6737/tunio/config"
	"github.com/am6737/tunio/queue"
	"github.com/am6737/tunio/reactor"
	"github.com/am6737/tunio/tun"
	"github.com/am6737/tunio/utils"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		cfg := config.GenerateConfigTemplate()
		return &cfg, nil
	}
	return config.Load(path)
}

func newLogger(c config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.Out = os.Stdout

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}
	return logger, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if dev := c.String("dev"); dev != "" {
		cfg.Tun.Dev = dev
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.WithField("tun", cfg.Tun.String()).Info("Starting tunio")

	devices, err := tun.NewDevicesFromConfig(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Error creating tunnel device")
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metrics.NewRegistry()
	if cfg.Tun.Blocking {
		err = runBlocking(ctx, cfg, logger, registry, devices)
	} else {
		err = runAsync(ctx, cfg, logger, registry, devices)
	}

	metrics.WriteOnce(registry, os.Stdout)
	return err
}

func newPump(cfg *config.Config, logger *logrus.Logger, registry metrics.Registry, d *tun.Device, i int) *pump {
	layer, _ := tun.ParseLayer(cfg.Tun.Layer)
	prefix := fmt.Sprintf("%s.q%d.", d.Name, i)
	return &pump{
		l:      logger.WithField("interface", d.Name).WithField("queue", i),
		layer:  layer,
		echo:   cfg.Queue.Echo,
		buf:    make([]byte, cfg.Queue.Buffer),
		frames: metrics.GetOrRegisterCounter(prefix+"frames", registry),
		echoed: metrics.GetOrRegisterCounter(prefix+"echoed", registry),
	}
}

func runAsync(ctx context.Context, cfg *config.Config, logger *logrus.Logger, registry metrics.Registry, devices []*tun.Device) error {
	r, err := reactor.New(logger)
	if err != nil {
		closeDevices(logger, devices)
		return err
	}
	defer r.Close()

	queues := make([]*queue.AsyncQueue, 0, len(devices))
	defer func() {
		for _, q := range queues {
			if err := q.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close queue")
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range devices {
		sq, err := queue.NewSync[queue.NonBlocking](d.File)
		if err != nil {
			closeDevices(logger, devices[i:])
			return err
		}
		q, err := queue.NewAsync(r, sq,
			queue.WithReadRetries(cfg.Queue.ReadRetries),
			queue.WithRegistry(metrics.NewPrefixedChildRegistry(registry, fmt.Sprintf("%s.q%d.", d.Name, i))),
			queue.WithLogger(logger),
		)
		if err != nil {
			sq.Close()
			closeDevices(logger, devices[i+1:])
			return err
		}
		queues = append(queues, q)

		p := newPump(cfg, logger, registry, d, i)
		p.read = q.ReadContext
		p.write = q.WriteContext
		g.Go(func() error { return p.run(ctx) })
	}

	return g.Wait()
}

// runBlocking pumps blocking queues. A blocked read cannot observe ctx, so
// on shutdown the pumps are abandoned rather than waited for.
func runBlocking(ctx context.Context, cfg *config.Config, logger *logrus.Logger, registry metrics.Registry, devices []*tun.Device) error {
	errs := make(chan error, len(devices))
	queues := make([]*queue.SyncQueue[queue.Blocking], 0, len(devices))

	for i, d := range devices {
		q, err := queue.NewSync[queue.Blocking](d.File)
		if err != nil {
			closeDevices(logger, devices[i:])
			return err
		}
		queues = append(queues, q)

		p := newPump(cfg, logger, registry, d, i)
		p.read = func(_ context.Context, b []byte) (int, error) { return q.Read(b) }
		p.write = func(_ context.Context, b []byte) (int, error) { return q.Write(b) }
		go func() { errs <- p.run(ctx) }()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	for _, q := range queues {
		q.Close()
	}
	return err
}

func closeDevices(logger *logrus.Logger, devices []*tun.Device) {
	for _, d := range devices {
		if err := d.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close tunnel device")
		}
	}
}

type pump struct {
	l     *logrus.Entry
	layer tun.Layer
	echo  bool
	buf   []byte

	read  func(context.Context, []byte) (int, error)
	write func(context.Context, []byte) (int, error)

	frames metrics.Counter
	echoed metrics.Counter
}

func (p *pump) run(ctx context.Context) error {
	pkt := &utils.Packet{}
	for {
		n, err := p.read(ctx, p.buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) || errors.Is(err, reactor.ErrClosed) {
				p.l.Debug("Queue closed, exiting read loop")
				return nil
			}
			p.l.WithError(err).Error("Error while reading frame")
			return err
		}
		p.frames.Inc(1)
		frame := p.buf[:n]

		if p.l.Logger.IsLevelEnabled(logrus.DebugLevel) {
			p.logFrame(frame, pkt)
		}

		if p.echo {
			if _, err := p.write(ctx, frame); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.l.WithError(err).Warn("Failed to echo frame")
				continue
			}
			p.echoed.Inc(1)
		}
	}
}

func (p *pump) logFrame(frame []byte, pkt *utils.Packet) {
	var err error
	if p.layer == tun.L2 {
		err = utils.ParseFrame(frame, pkt)
	} else {
		err = utils.ParsePacket(frame, pkt)
	}
	if err != nil {
		p.l.WithError(err).WithField("len", len(frame)).Debug("Unparsable frame")
		return
	}
	p.l.WithField("packet", pkt.String()).Debug("Frame read")
}
