package internal

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,default=30s"`
	AwayThreshold        time.Duration `env:"AWAY_THRESHOLD,default=2m"`
	TypingTimeout        time.Duration `env:"TYPING_TIMEOUT,default=2s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,default=2000"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
}
