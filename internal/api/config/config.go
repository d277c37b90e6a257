package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")

	viper.SetEnvPrefix("MESDO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file not found: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("security.token_expire", 24)
	viper.SetDefault("realtime.write_wait", 10)
	viper.SetDefault("realtime.pong_wait", 60)
	viper.SetDefault("realtime.ping_period", 30)
	viper.SetDefault("realtime.send_buffer", 128)
	viper.SetDefault("realtime.max_message_size", 1<<20)
	viper.SetDefault("chat.max_message_length", 5000)
	viper.SetDefault("chat.preview_length", 50)
	viper.SetDefault("chat.presence_ttl", 90)
	viper.SetDefault("chat.presence_sweep", "0 */1 * * * *")
}
