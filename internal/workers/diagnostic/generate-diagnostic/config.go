package generatediagnostic

import "time"

type Config struct {
	Timeout time.Duration
	// RecordStats applies when the job does not set recordStats.
	RecordStats bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
