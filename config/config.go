package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tun    TunConfig    `yaml:"tun"`
	Queue  QueueConfig  `yaml:"queue"`
	Log    LogConfig    `yaml:"log"`
	Daemon DaemonConfig `yaml:"daemon"`
}

type TunConfig struct {
	// Dev Name of the device. May be a template such as "tun%d", in which
	// case the kernel picks the index.
	Dev string `yaml:"dev"`
	// Layer is "l3" (tun) or "l2" (tap). Empty means l3.
	Layer    string `yaml:"layer"`
	Blocking bool   `yaml:"blocking"`
	MTU      int    `yaml:"mtu"`
	// Addr in CIDR notation, e.g. 10.10.0.1/24. Optional.
	Addr   string   `yaml:"addr"`
	Routes []string `yaml:"routes"`
	Metric int      `yaml:"metric"`
	// Queues is the number of descriptors attached to the interface. Values
	// above one require multi-queue support in the kernel.
	Queues  int  `yaml:"queues"`
	Persist bool `yaml:"persist"`
	// Owner and Group are applied when >= 0.
	Owner int `yaml:"owner"`
	Group int `yaml:"group"`
}

type QueueConfig struct {
	ReadRetries int `yaml:"read_retries"`
	Buffer      int `yaml:"buffer"`
	// Echo writes every frame read back to the device.
	Echo bool `yaml:"echo"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DaemonConfig struct {
	PidFile string `yaml:"pid_file"`
	LogFile string `yaml:"log_file"`
	WorkDir string `yaml:"work_dir"`
}

func (c TunConfig) String() string {
	return fmt.Sprintf("dev=%s layer=%s blocking=%v mtu=%d queues=%d", c.Dev, c.Layer, c.Blocking, c.MTU, c.Queues)
}

// Load reads filename and applies it over the defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := GenerateConfigTemplate()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that yaml cannot express.
func (c *Config) Validate() error {
	switch c.Tun.Layer {
	case "", "l2", "l3", "tap", "tun":
	default:
		return fmt.Errorf("tun.layer: unknown layer %q", c.Tun.Layer)
	}
	if c.Tun.MTU < 0 || c.Tun.MTU > 65535 {
		return fmt.Errorf("tun.mtu: %d out of range", c.Tun.MTU)
	}
	if c.Tun.Queues < 1 {
		return fmt.Errorf("tun.queues: must be at least 1, got %d", c.Tun.Queues)
	}
	if c.Queue.Buffer < 64 {
		return fmt.Errorf("queue.buffer: %d is too small", c.Queue.Buffer)
	}
	if c.Queue.ReadRetries < 0 {
		return fmt.Errorf("queue.read_retries: must not be negative")
	}
	return nil
}

var (
	defaultTun = TunConfig{
		Dev:      "tun%d",
		Layer:    "l3",
		Blocking: false,
		MTU:      1500,
		Addr:     "",
		Routes:   nil,
		Metric:   0,
		Queues:   1,
		Persist:  false,
		Owner:    -1,
		Group:    -1,
	}

	defaultQueue = QueueConfig{
		ReadRetries: 16,
		Buffer:      2048,
		Echo:        false,
	}

	defaultLog = LogConfig{
		Level:  "info",
		Format: "text",
	}

	defaultDaemon = DaemonConfig{
		PidFile: "tunio.pid",
		LogFile: "tunio.log",
		WorkDir: "./",
	}
)

// GenerateConfigTemplate returns the default configuration.
func GenerateConfigTemplate() Config {
	return Config{
		Tun:    defaultTun,
		Queue:  defaultQueue,
		Log:    defaultLog,
		Daemon: defaultDaemon,
	}
}
