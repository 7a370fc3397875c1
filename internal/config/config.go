package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seralt/cstrd/internal/reactor"
)

const (
	DefaultGridStart  = 0.0
	DefaultGridEnd    = 10.0
	DefaultGridPoints = 301
	DefaultIterations = 1

	DefaultDataTopic    = "cstr_data"
	DefaultControlTopic = "cstr_control"
	DefaultGroupID      = "cstr-simulator"
	DefaultHealthPath   = "/healthcheck"

	DefaultAttempts           = 5
	DefaultIdleTimeoutSeconds = 10.0
	DefaultPollTimeoutSeconds = 5.0
)

type Config struct {
	Grid       GridConfig     `yaml:"grid"`
	InitState  InitConfig     `yaml:"init_state"`
	Feed       FeedConfig     `yaml:"feed"`
	TcSteady   float64        `yaml:"tc_steady_state"`
	Iterations int            `yaml:"iterations"`
	Receiver   ReceiverConfig `yaml:"receiver"`
	Broker     BrokerConfig   `yaml:"broker"`
	HealthPath string         `yaml:"health_path"`
}

type GridConfig struct {
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`
	Points int     `yaml:"points"`
}

type InitConfig struct {
	Ca   float64 `yaml:"ca"`
	Temp float64 `yaml:"temp"`
}

type FeedConfig struct {
	Temp float64 `yaml:"temp"`
	Conc float64 `yaml:"conc"`
}

type ReceiverConfig struct {
	Attempts           int     `yaml:"attempts"`
	IdleTimeoutSeconds float64 `yaml:"idle_timeout_seconds"`
	PollTimeoutSeconds float64 `yaml:"poll_timeout_seconds"`
}

type BrokerConfig struct {
	Address      string `yaml:"address"`
	DataTopic    string `yaml:"data_topic"`
	ControlTopic string `yaml:"control_topic"`
	GroupID      string `yaml:"group_id"`
}

func DefaultConfig() *Config {
	return &Config{
		Grid: GridConfig{
			Start:  DefaultGridStart,
			End:    DefaultGridEnd,
			Points: DefaultGridPoints,
		},
		InitState: InitConfig{
			Ca:   reactor.CaSeed,
			Temp: reactor.TempSeed,
		},
		Feed: FeedConfig{
			Temp: reactor.DefaultFeed().Temp,
			Conc: reactor.DefaultFeed().Conc,
		},
		TcSteady:   reactor.TcSteadyState,
		Iterations: DefaultIterations,
		Receiver: ReceiverConfig{
			Attempts:           DefaultAttempts,
			IdleTimeoutSeconds: DefaultIdleTimeoutSeconds,
			PollTimeoutSeconds: DefaultPollTimeoutSeconds,
		},
		Broker: BrokerConfig{
			DataTopic:    DefaultDataTopic,
			ControlTopic: DefaultControlTopic,
			GroupID:      DefaultGroupID,
		},
		HealthPath: DefaultHealthPath,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overlays the environment variables the deployment injects.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("KAFKA_BROKER_ADDRESS"); v != "" {
		c.Broker.Address = v
	}
	if v := os.Getenv("CSTR_DATA_TOPIC"); v != "" {
		c.Broker.DataTopic = v
	}
	if v := os.Getenv("CSTR_CONTROL_TOPIC"); v != "" {
		c.Broker.ControlTopic = v
	}
	if v := os.Getenv("HEALTHCHECK_PATH"); v != "" {
		c.HealthPath = v
	}
}

func (c *Config) Validate() error {
	if c.Grid.Points < 2 {
		return fmt.Errorf("grid needs at least 2 points, got %d", c.Grid.Points)
	}
	if c.Grid.End <= c.Grid.Start {
		return fmt.Errorf("grid end %f must be after start %f", c.Grid.End, c.Grid.Start)
	}
	if c.InitState.Temp <= 0 {
		return fmt.Errorf("initial temperature must be positive, got %f", c.InitState.Temp)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", c.Iterations)
	}
	if c.Receiver.Attempts < 1 {
		return fmt.Errorf("receiver attempts must be at least 1, got %d", c.Receiver.Attempts)
	}
	if c.Broker.Address == "" {
		return fmt.Errorf("broker address not set (config or KAFKA_BROKER_ADDRESS)")
	}
	return nil
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Receiver.IdleTimeoutSeconds * float64(time.Second))
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Receiver.PollTimeoutSeconds * float64(time.Second))
}
