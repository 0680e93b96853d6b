package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config 应用程序配置
type Config struct {
	Environment string            `json:"-"`
	Server      ServerConfig      `json:"server"`
	S3          S3Config          `json:"s3"`
	Catalog     CatalogConfig     `json:"catalog"`
	DuckDB      DuckDBConfig      `json:"duckdb"`
	Cache       CacheConfig       `json:"cache"`
	Performance PerformanceConfig `json:"performance"`
	Iceberg     IcebergConfig     `json:"iceberg"`
	Log         LogConfig         `json:"log"`
}

// ServerConfig 本地 HTTP 服务器配置
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// S3Config 对象存储配置
type S3Config struct {
	BucketName      string `json:"bucket_name"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	UseSSL          bool   `json:"use_ssl"`
	PathStyleAccess bool   `json:"path_style_access"`
	WarehousePath   string `json:"warehouse_path"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// CatalogConfig 目录服务配置
type CatalogConfig struct {
	Type      string `json:"type"` // memory 或 rest
	Name      string `json:"name"`
	URI       string `json:"uri"`
	Region    string `json:"region"`
	Warehouse string `json:"warehouse"`
	Token     string `json:"token"`
}

// DuckDBConfig 查询引擎配置
type DuckDBConfig struct {
	MemoryLimit string `json:"memory_limit"`
	Threads     int    `json:"threads"`
	HomeDir     string `json:"home_dir"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	MetadataTTLSeconds int `json:"metadata_ttl_seconds"`
	ResultTTLSeconds   int `json:"result_ttl_seconds"`
	ResultMaxSize      int `json:"result_max_size"`
}

// MetadataTTL 返回元数据缓存有效期
func (c CacheConfig) MetadataTTL() time.Duration {
	return time.Duration(c.MetadataTTLSeconds) * time.Second
}

// ResultTTL 返回结果缓存有效期
func (c CacheConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLSeconds) * time.Second
}

// PerformanceConfig 性能配置
type PerformanceConfig struct {
	QueryTimeoutMs int `json:"query_timeout_ms"`
	MaxRetries     int `json:"max_retries"`
}

// QueryTimeout 返回单次操作的超时时间
func (p PerformanceConfig) QueryTimeout() time.Duration {
	return time.Duration(p.QueryTimeoutMs) * time.Millisecond
}

// IcebergConfig 表格式相关配置
type IcebergConfig struct {
	Compaction CompactionConfig `json:"compaction"`
}

// CompactionConfig 压缩配置
type CompactionConfig struct {
	Enabled       bool `json:"enabled"`                      // 写路径探测总开关
	CheckInterval int  `json:"opportunistic_check_interval"` // 每 N 个快照探测一次
	ThresholdMB   int  `json:"small_file_threshold_mb"`      // 小文件判定阈值
	MinFiles      int  `json:"min_files_to_compact"`         // 触发压缩的最小文件数
	MaxFiles      int  `json:"max_files_per_compaction"`     // 单轮压缩的文件上限
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or text
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		S3: S3Config{
			Region: "us-west-2",
			UseSSL: true,
		},
		Catalog: CatalogConfig{
			Type: "memory",
		},
		DuckDB: DuckDBConfig{
			MemoryLimit: "512MB",
			Threads:     2,
			HomeDir:     "/tmp",
		},
		Cache: CacheConfig{
			MetadataTTLSeconds: 300,
			ResultTTLSeconds:   60,
			ResultMaxSize:      100,
		},
		Performance: PerformanceConfig{
			QueryTimeoutMs: 30000,
			MaxRetries:     3,
		},
		Iceberg: IcebergConfig{
			Compaction: CompactionConfig{
				Enabled:       true,
				CheckInterval: 100,
				ThresholdMB:   64,
				MinFiles:      10,
				MaxFiles:      100,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envVarPattern 匹配 ${VAR} 形式的占位符
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvVars 替换配置文本中的 ${VAR} 占位符。
// 引用了未定义的环境变量视为配置错误。
func substituteEnvVars(data []byte) ([]byte, error) {
	var missing []string
	out := envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(envVarPattern.FindSubmatch(match)[1])
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		escaped, _ := json.Marshal(value)
		// json.Marshal 带引号，占位符在字符串内部，去掉引号
		return escaped[1 : len(escaped)-1]
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("配置引用了未定义的环境变量: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// LoadConfig 从文件加载配置。
// 配置文件按环境分节（development/staging/production/testing），
// 由 ENVIRONMENT 环境变量选择，默认 development。
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return ParseConfig(data, CurrentEnvironment())
}

// ParseConfig 解析按环境分节的配置文本
func ParseConfig(data []byte, environment string) (*Config, error) {
	data, err := substituteEnvVars(data)
	if err != nil {
		return nil, err
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	section, ok := sections[environment]
	if !ok {
		return nil, fmt.Errorf("配置文件缺少环境节: %s", environment)
	}

	config := DefaultConfig()
	config.Environment = environment
	if err := json.Unmarshal(section, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// CurrentEnvironment 返回当前部署环境
func CurrentEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

// LoadConfigOrDefault 尝试从常见位置加载配置文件
func LoadConfigOrDefault() *Config {
	possiblePaths := []string{
		"config.json",
		"./config/config.json",
		"/etc/lakebase/config.json",
	}

	if envPath := os.Getenv("LAKEBASE_CONFIG"); envPath != "" {
		if config, err := LoadConfig(envPath); err == nil {
			return config
		}
	}

	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if config, err := LoadConfig(absPath); err == nil {
				return config
			}
		}
	}

	return DefaultConfig()
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("无效的端口号: %d", config.Server.Port)
	}

	switch config.Catalog.Type {
	case "memory", "rest":
	default:
		return fmt.Errorf("无效的目录类型: %s", config.Catalog.Type)
	}

	if config.Catalog.Type == "rest" && config.Catalog.URI == "" {
		return fmt.Errorf("REST 目录必须配置 uri")
	}

	if config.Cache.ResultMaxSize < 1 {
		return fmt.Errorf("结果缓存容量必须大于0")
	}

	if config.Performance.QueryTimeoutMs <= 0 {
		return fmt.Errorf("查询超时必须大于0")
	}

	if config.Iceberg.Compaction.CheckInterval < 1 {
		return fmt.Errorf("压缩探测间隔必须大于0")
	}

	if config.Iceberg.Compaction.MinFiles < 2 {
		return fmt.Errorf("压缩最小文件数必须大于1")
	}

	return nil
}

// GetListenAddress 返回监听地址
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsExpressBucket 判断桶是否为 S3 Express One Zone 目录桶
func IsExpressBucket(bucket string) bool {
	return strings.HasSuffix(bucket, "--x-s3")
}

// S3EndpointFor 返回桶对应的 S3 端点。
// Express 目录桶（形如 name--usw2-az1--x-s3）使用可用区级端点，
// 普通桶使用区域端点；显式配置的 endpoint 优先。
func (c *Config) S3EndpointFor(bucket string) string {
	if c.S3.Endpoint != "" {
		return c.S3.Endpoint
	}
	scheme := "https"
	if !c.S3.UseSSL {
		scheme = "http"
	}
	if IsExpressBucket(bucket) {
		parts := strings.Split(bucket, "--")
		if len(parts) >= 3 {
			az := parts[len(parts)-2]
			return fmt.Sprintf("%s://s3express-%s.%s.amazonaws.com", scheme, az, c.S3.Region)
		}
	}
	return fmt.Sprintf("%s://s3.%s.amazonaws.com", scheme, c.S3.Region)
}
