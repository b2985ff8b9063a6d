package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/sketchroom/internal/domain"
)

type Config struct {
	Server Server              `yaml:"server"`
	Canvas domain.CanvasConfig `yaml:"canvas"`
}

type Server struct {
	ListenAddr    string `yaml:"listenAddr"`
	CanvasName    string `yaml:"canvasName"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	AdminToken    string `yaml:"adminToken"`
	LogLevel      string `yaml:"logLevel"` // debug, info, warn, error
}

func Defaults() Config {
	return Config{
		Server: Server{
			ListenAddr: ":8000",
			CanvasName: "main",
			LogLevel:   "info",
		},
		Canvas: domain.DefaultCanvasConfig(),
	}
}

// Load reads a yaml file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	config := Defaults()
	if path == "" {
		return config, config.Validate()
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return config, config.Validate()
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "config.Load: open failed")
	}
	defer file.Close()

	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "config.Load: decode failed")
	}

	config.capSnapshotSize()
	return config, config.Validate()
}

// capSnapshotSize keeps accepted rasters within what the snapshot backend
// can store, so a refresh request is never answered with an unstorable image.
func (c *Config) capSnapshotSize() {
	if c.Server.MemcachedAddr == "" || c.Canvas.MaxSnapshotBytes <= domain.MemcachedMaxSnapshotBytes {
		return
	}
	slog.Warn(
		"canvas.maxSnapshotBytes exceeds the memcached item limit, capping",
		slog.Int("configured", c.Canvas.MaxSnapshotBytes),
		slog.Int("cap", domain.MemcachedMaxSnapshotBytes),
		slog.String("module", "config"),
	)
	c.Canvas.MaxSnapshotBytes = domain.MemcachedMaxSnapshotBytes
}

func (c Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listenAddr is required")
	}
	if c.Server.CanvasName == "" || strings.ContainsAny(c.Server.CanvasName, " :") {
		return errors.Errorf("server.canvasName %q is invalid", c.Server.CanvasName)
	}
	if c.Server.EnableTrace && c.Server.TraceEndpoint == "" {
		return errors.New("server.traceEndpoint is required when tracing is enabled")
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("server.logLevel %q is unknown", c.Server.LogLevel)
	}

	cv := c.Canvas
	if cv.MaxHistory <= 0 {
		return errors.New("canvas.maxHistory must be positive")
	}
	if cv.UndoWindow <= 0 {
		return errors.New("canvas.undoWindow must be positive")
	}
	if cv.MaxSegments <= 0 || cv.MaxChatMessages <= 0 || cv.MaxSnapshotBytes <= 0 {
		return errors.New("canvas size limits must be positive")
	}
	if cv.InactivityLimit <= 0 || cv.PresenceInterval <= 0 || cv.SnapshotCheckInterval <= 0 ||
		cv.SnapshotStaleAfter <= 0 || cv.PruneInterval <= 0 {
		return errors.New("canvas intervals must be positive")
	}
	return nil
}
