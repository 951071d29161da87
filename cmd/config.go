package main

import (
	"errors"
	"strings"
	"time"

	"github.com/chenBenjamin97/smart-cart/pkg/dispatch"
	"github.com/chenBenjamin97/smart-cart/pkg/inventory"
	"github.com/chenBenjamin97/smart-cart/pkg/utils"
	"github.com/chenBenjamin97/smart-cart/pkg/video"
	"github.com/spf13/viper"
)

//config is everything main needs, read once at startup
type config struct {
	Port            string
	Source          string
	DetectFrameSize bool
	FrameHeight     int
	Tracker         video.TrackerConfig
	Processor       video.ProcessorOptions
	Labels          utils.Labels
	Dispatch        dispatch.Config
	Driver          string
	DSN             string
	CartID          int
	SeedProducts    bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("video.source", "0")
	v.SetDefault("video.detect_frame_size", true)
	v.SetDefault("video.frame_height", utils.DefaultFrameHeight)
	v.SetDefault("tracker.command", "python3")
	v.SetDefault("tracker.args", []string{})
	v.SetDefault("tracking.confidence_threshold", utils.ConfidenceThreshold)
	v.SetDefault("tracking.max_idle_frames", 0)
	v.SetDefault("labels", []string(utils.DefaultLabels))

	d := dispatch.DefaultConfig()
	v.SetDefault("dispatch.workers", d.Workers)
	v.SetDefault("dispatch.queue_size", d.QueueSize)
	v.SetDefault("dispatch.retries", d.Retries)
	v.SetDefault("dispatch.retry_backoff", d.RetryBackoff)
	v.SetDefault("dispatch.call_timeout", d.CallTimeout)

	v.SetDefault("inventory.driver", inventory.DriverSQLite)
	v.SetDefault("inventory.dsn", "smartcart.db")
	v.SetDefault("inventory.cart_id", utils.DefaultCartID)
	v.SetDefault("inventory.seed_products", true)
}

//readConfig looks for config.yaml in the working directory; settings can be overridden with SMARTCART_ variables
//(e.g. SMARTCART_TRACKER_SCRIPT). A missing file is not an error, defaults and environment are used instead
func readConfig(v *viper.Viper) error {
	setDefaults(v)

	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SMARTCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

func loadConfig(v *viper.Viper) (config, error) {
	maxIdleFrames := v.GetInt("tracking.max_idle_frames")

	c := config{
		Port:            v.GetString("http.port"),
		Source:          v.GetString("video.source"),
		DetectFrameSize: v.GetBool("video.detect_frame_size"),
		FrameHeight:     v.GetInt("video.frame_height"),
		Tracker: video.TrackerConfig{
			Command: v.GetString("tracker.command"),
			Script:  v.GetString("tracker.script"),
			Source:  v.GetString("video.source"),
			Args:    v.GetStringSlice("tracker.args"),
		},
		Processor: video.ProcessorOptions{
			ConfidenceThreshold: v.GetFloat64("tracking.confidence_threshold"),
			MaxIdleFrames:       uint64(max(maxIdleFrames, 0)),
		},
		Labels: utils.Labels(v.GetStringSlice("labels")),
		Dispatch: dispatch.Config{
			Workers:      v.GetInt("dispatch.workers"),
			QueueSize:    v.GetInt("dispatch.queue_size"),
			Retries:      v.GetInt("dispatch.retries"),
			RetryBackoff: v.GetDuration("dispatch.retry_backoff"),
			CallTimeout:  v.GetDuration("dispatch.call_timeout"),
		},
		Driver:       v.GetString("inventory.driver"),
		DSN:          v.GetString("inventory.dsn"),
		CartID:       v.GetInt("inventory.cart_id"),
		SeedProducts: v.GetBool("inventory.seed_products"),
	}

	if c.Tracker.Script == "" || c.Tracker.Command == "" || c.Source == "" {
		return c, errors.New("missing critical configuration: tracker.command, tracker.script and video.source are required")
	}
	if len(c.Labels) == 0 {
		return c, errors.New("missing critical configuration: labels is empty")
	}
	if c.FrameHeight <= 0 {
		return c, errors.New("video.frame_height must be positive")
	}
	if maxIdleFrames < 0 {
		return c, errors.New("tracking.max_idle_frames must not be negative, use 0 to keep every track")
	}
	if c.Dispatch.RetryBackoff < 0 || c.Dispatch.CallTimeout < 0 {
		return c, errors.New("dispatch durations must not be negative")
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Dispatch.CallTimeout == 0 {
		c.Dispatch.CallTimeout = 5 * time.Second
	}

	return c, nil
}
