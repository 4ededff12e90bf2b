package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigName = "copyConfig"
	EnvPrefix  = "COPY"
)

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Document struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"document"`
	Store struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"store"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
		Workers int      `mapstructure:"workers"`
	} `mapstructure:"kafka"`
	Server struct {
		EnableCORS   bool     `mapstructure:"enable_cors"`
		MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
		LiveFeed     bool     `mapstructure:"live_feed"`
		WSOrigins    []string `mapstructure:"ws_origins"`
	} `mapstructure:"server"`
	Editor Editor `mapstructure:"editor"`
	Client struct {
		Server    string `mapstructure:"server"`
		Page      string `mapstructure:"page"`
		TimeoutMs int    `mapstructure:"timeout_ms"`
	} `mapstructure:"client"`
}

type Editor struct {
	Mode           string `mapstructure:"mode"`
	QuietMs        int    `mapstructure:"quiet_ms"`
	StatusLingerMs int    `mapstructure:"status_linger_ms"`
	SaveTimeoutMs  int    `mapstructure:"save_timeout_ms"`
}

func (e Editor) QuietInterval() time.Duration {
	return time.Duration(e.QuietMs) * time.Millisecond
}

func (e Editor) StatusLinger() time.Duration {
	return time.Duration(e.StatusLingerMs) * time.Millisecond
}

func (e Editor) SaveTimeout() time.Duration {
	return time.Duration(e.SaveTimeoutMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("running.port", 3000)
	v.SetDefault("document.name", "default")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "./data/copy.json")
	v.SetDefault("store.dsn", "")
	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "copy-blocks-merged")
	v.SetDefault("kafka.workers", 4)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("server.live_feed", true)
	v.SetDefault("server.ws_origins", []string{})
	v.SetDefault("editor.mode", "rich")
	// 历史取值在 450~700ms 之间
	v.SetDefault("editor.quiet_ms", 500)
	v.SetDefault("editor.status_linger_ms", 1200)
	v.SetDefault("editor.save_timeout_ms", 10000)
	v.SetDefault("client.server", "http://localhost:3000")
	v.SetDefault("client.page", "")
	v.SetDefault("client.timeout_ms", 5000)
}

// 命令行参数名 -> 配置 key，只绑定 FlagSet 上实际定义过的
var flagKeys = map[string]string{
	"port":         "running.port",
	"document":     "document.name",
	"store-driver": "store.driver",
	"store-path":   "store.path",
	"store-dsn":    "store.dsn",
	"mode":         "editor.mode",
	"quiet-ms":     "editor.quiet_ms",
	"server":       "client.server",
	"page":         "client.page",
}

// Load 读取配置，优先级：命令行 > 环境变量(COPY_*) > 配置文件 > 默认值。
// path 为空时在 ./backend/config、./config、. 里找 copyConfig.yaml，找不到就只用默认值。
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		// 兼容从项目根目录或 backend 目录启动
		v.AddConfigPath("./backend/config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
