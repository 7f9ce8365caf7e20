// internal/utils/logger/config.go
package logger

// Config describes console and rotated-file output.
type Config struct {
	LogFile     string `mapstructure:"file"` // empty disables the file sink
	Level       string `mapstructure:"level"`
	MaxSize     int    `mapstructure:"max_size"` // MB
	MaxAge      int    `mapstructure:"max_age"`  // days
	MaxBackups  int    `mapstructure:"max_backups"`
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		LogFile:    "launchpad.log",
		Level:      "info",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
}
