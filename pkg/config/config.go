package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ORDERDESK"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Etcd         EtcdConfig         `mapstructure:"etcd"`
	Redis        RedisConfig        `mapstructure:"redis"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	MongoDB      MongoDBConfig      `mapstructure:"mongodb"`
	RabbitMQ     RabbitMQConfig     `mapstructure:"rabbitmq"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Log          LogConfig          `mapstructure:"log"`
	Wizard       WizardConfig       `mapstructure:"wizard"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	OrderService OrderServiceConfig `mapstructure:"order_service"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	Exchange string `mapstructure:"exchange"`
}

type GatewayConfig struct {
	Port        int      `mapstructure:"port"`
	Host        string   `mapstructure:"host"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type OptionConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// WizardConfig holds the ordering policy and session timeouts.
type WizardConfig struct {
	TaxRate         string         `mapstructure:"tax_rate"`
	PaymentMethods  []OptionConfig `mapstructure:"payment_methods"`
	DeliveryOptions []OptionConfig `mapstructure:"delivery_options"`
	FetchTimeout    time.Duration  `mapstructure:"fetch_timeout"`
	SubmitTimeout   time.Duration  `mapstructure:"submit_timeout"`
	IdleTimeout     time.Duration  `mapstructure:"idle_timeout"`
}

// CatalogConfig selects where candidate lists come from: "fixture", "mysql"
// or "http".
type CatalogConfig struct {
	Source   string        `mapstructure:"source"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// OrderServiceConfig tells the gateway how to reach the order service.
// DefaultBreaker guards calls to the order service unless configured otherwise.
var DefaultBreaker = BreakerConfig{
	MaxRequests:  3,
	Interval:     15 * time.Second,
	Timeout:      30 * time.Second,
	MinRequests:  3,
	FailureRatio: 0.6,
}

type OrderServiceConfig struct {
	Name          string        `mapstructure:"name"`
	Address       string        `mapstructure:"address"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	PolicyTimeout time.Duration `mapstructure:"policy_timeout"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "order-service")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50052)

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.cors_origins", []string{"*"})

	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/orderdesk/services/")
	v.SetDefault("etcd.lease_ttl", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("mongodb.database", "orderdesk")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.vhost", "/")
	v.SetDefault("rabbitmq.exchange", "orders_topic")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})

	v.SetDefault("wizard.tax_rate", "0.15")
	v.SetDefault("wizard.fetch_timeout", 5*time.Second)
	v.SetDefault("wizard.submit_timeout", 10*time.Second)
	v.SetDefault("wizard.idle_timeout", 30*time.Minute)

	v.SetDefault("catalog.source", "fixture")
	v.SetDefault("catalog.timeout", 3*time.Second)
	v.SetDefault("catalog.cache_ttl", 5*time.Minute)

	v.SetDefault("order_service.name", "order-service")
	v.SetDefault("order_service.address", "localhost:50052")
	v.SetDefault("order_service.dial_timeout", 5*time.Second)
	v.SetDefault("order_service.policy_timeout", 30*time.Second)
	v.SetDefault("order_service.breaker.max_requests", DefaultBreaker.MaxRequests)
	v.SetDefault("order_service.breaker.interval", DefaultBreaker.Interval)
	v.SetDefault("order_service.breaker.timeout", DefaultBreaker.Timeout)
	v.SetDefault("order_service.breaker.min_requests", DefaultBreaker.MinRequests)
	v.SetDefault("order_service.breaker.failure_ratio", DefaultBreaker.FailureRatio)
}

// Load reads the YAML file at configPath. Values from a .env file in the
// working directory and ORDERDESK_* environment variables override it.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *RabbitMQConfig) URL() string {
	vhost := strings.TrimPrefix(c.VHost, "/")
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, vhost)
}
