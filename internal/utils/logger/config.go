// internal/utils/logger/config.go
package logger

type Config struct {
	LogFile     string `mapstructure:"file"`        // empty disables the file sink
	Level       string `mapstructure:"level"`       // overrides the Development default
	MaxSize     int    `mapstructure:"max_size"`    // мегабайты
	MaxAge      int    `mapstructure:"max_age"`     // дни
	MaxBackups  int    `mapstructure:"max_backups"` // количество файлов
	Compress    bool   `mapstructure:"compress"`    // сжимать ротированные файлы
	Development bool   `mapstructure:"development"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "kappa.log",
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: false,
	}
}
