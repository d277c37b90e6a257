package config

// Config 配置主体
type Config struct {
	Server                Server                `mapstructure:"server"`
	DB                    DBConfig              `mapstructure:"database"`
	Redis                 RedisConfig           `mapstructure:"redis"`
	Mongo                 MongoConfig           `mapstructure:"mongo"`
	MinIO                 MinIOConfig           `mapstructure:"minio"`
	Kafka                 KafkaConfig           `mapstructure:"kafka"`
	KafkaIdentityConsumer KafkaIdentityConsumer `mapstructure:"kafka_identity_consumer"`
	Logstash              LogstashConfig        `mapstructure:"logstash"`
	Security              SecurityConfig        `mapstructure:"security"`
	Realtime              RealtimeConfig        `mapstructure:"realtime"`
	Chat                  ChatConfig            `mapstructure:"chat"`
}

// Server Server配置
type Server struct {
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	InternalEndpoint string `mapstructure:"internal_endpoint"`
	ExternalEndpoint string `mapstructure:"external_endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	AttachmentBucket string `mapstructure:"attachment_bucket"`
	InternalUseSSL   bool   `mapstructure:"internal_use_ssl"`
	UsePublicLink    bool   `mapstructure:"use_public_link"`
}

type KafkaConfig struct {
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
}

// KafkaIdentityConsumer 身份变更(canal)消费者
type KafkaIdentityConsumer struct {
	Enable  bool   `mapstructure:"enable"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type LogstashConfig struct {
	Addr  string `mapstructure:"addr"`
	Token string `mapstructure:"token"`
	Level string `mapstructure:"level"`
}

type SecurityConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	TokenExpire int    `mapstructure:"token_expire"`
}

// RealtimeConfig 实时网关参数, 时间单位均为秒
type RealtimeConfig struct {
	WriteWait      int   `mapstructure:"write_wait"`
	PongWait       int   `mapstructure:"pong_wait"`
	PingPeriod     int   `mapstructure:"ping_period"`
	SendBuffer     int   `mapstructure:"send_buffer"`
	MaxMessageSize int64 `mapstructure:"max_message_size"`
}

// ChatConfig 会话/消息相关限制
type ChatConfig struct {
	MaxMessageLength int    `mapstructure:"max_message_length"`
	PreviewLength    int    `mapstructure:"preview_length"`
	PresenceTTL      int    `mapstructure:"presence_ttl"`
	PresenceSweep    string `mapstructure:"presence_sweep"`
}
