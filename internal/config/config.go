// Package config holds the runtime configuration of the canvas API and the
// rules for loading, validating and hot reloading it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"brain2-canvas/internal/geometry"
)

// Environment represents the deployment environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
)

// Config is the complete application configuration.
type Config struct {
	Environment Environment `yaml:"environment"`
	Server      Server      `yaml:"server"`
	Auth        Auth        `yaml:"auth"`
	Storage     Storage     `yaml:"storage"`
	Redis       Redis       `yaml:"redis"`
	NATS        NATS        `yaml:"nats"`
	Broadcast   Broadcast   `yaml:"broadcast"`
	Canvas      Canvas      `yaml:"canvas"`
	Metrics     Metrics     `yaml:"metrics"`
	Tracing     Tracing     `yaml:"tracing"`
	Logging     Logging     `yaml:"logging"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

type Server struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// Address returns host:port.
func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Auth struct {
	Enabled   bool     `yaml:"enabled"`
	JWTSecret string   `yaml:"jwtSecret"`
	Issuer    string   `yaml:"issuer"`
	Audience  []string `yaml:"audience"`
}

type Storage struct {
	Driver         string `yaml:"driver"`
	PostgresDSN    string `yaml:"postgresDSN"`
	DynamoTable    string `yaml:"dynamoTable"`
	Region         string `yaml:"region"`
	DynamoEndpoint string `yaml:"dynamoEndpoint"`
	Fixtures       string `yaml:"fixtures"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StatsTTL time.Duration `yaml:"statsTTL"`
}

type NATS struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type Broadcast struct {
	KeepAlive             time.Duration `yaml:"keepAlive"`
	MaxConnectionsPerUser int           `yaml:"maxConnectionsPerUser"`
	SendBuffer            int           `yaml:"sendBuffer"`
}

// Canvas holds the tunables shared with the client-side state machine.
type Canvas struct {
	ClickThreshold float64             `yaml:"clickThreshold"`
	Zoom           geometry.ZoomLimits `yaml:"zoom"`
	CollisionGap   float64             `yaml:"collisionGap"`
	Footprints     geometry.Footprints `yaml:"footprints"`
	Layout         geometry.Layout     `yaml:"layout"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used before any file or variable is
// applied.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: Server{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Auth: Auth{
			Enabled:  true,
			Issuer:   "brain2-canvas",
			Audience: []string{"canvas-api"},
		},
		Storage: Storage{
			Driver:      DriverMemory,
			DynamoTable: "brain2-canvas",
			Region:      "us-east-1",
		},
		Redis: Redis{
			Addr:     "localhost:6379",
			StatsTTL: 5 * time.Minute,
		},
		NATS: NATS{
			URL:     "nats://localhost:4222",
			Subject: "canvas.events",
		},
		Broadcast: Broadcast{
			KeepAlive:             30 * time.Second,
			MaxConnectionsPerUser: 10,
			SendBuffer:            256,
		},
		Canvas: Canvas{
			ClickThreshold: 5,
			Zoom:           geometry.DefaultZoomLimits,
			CollisionGap:   10,
			Footprints:     geometry.DefaultFootprints,
			Layout:         geometry.DefaultLayout,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "canvas",
		},
		Tracing: Tracing{
			ServiceName: "brain2-canvas",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret is required when auth is enabled"))
	}
	if c.Environment == Production && !c.Auth.Enabled {
		errs = append(errs, errors.New("auth cannot be disabled in production"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgresDSN is required for the postgres driver"))
		}
	case DriverDynamoDB:
		if c.Storage.DynamoTable == "" {
			errs = append(errs, errors.New("storage.dynamoTable is required for the dynamodb driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}

	if c.Broadcast.KeepAlive <= 0 {
		errs = append(errs, errors.New("broadcast.keepAlive must be positive"))
	}
	if c.Broadcast.MaxConnectionsPerUser <= 0 {
		errs = append(errs, errors.New("broadcast.maxConnectionsPerUser must be positive"))
	}

	if c.Canvas.Zoom.Min <= 0 || c.Canvas.Zoom.Min > c.Canvas.Zoom.Max {
		errs = append(errs, fmt.Errorf("canvas.zoom range [%v, %v] is invalid", c.Canvas.Zoom.Min, c.Canvas.Zoom.Max))
	}
	if c.Canvas.ClickThreshold < 0 {
		errs = append(errs, errors.New("canvas.clickThreshold cannot be negative"))
	}
	if err := c.Canvas.Footprints.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
