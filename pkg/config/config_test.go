package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.Catalog.Type)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Cache.ResultMaxSize)
	assert.True(t, cfg.Iceberg.Compaction.Enabled)
	assert.Equal(t, 100, cfg.Iceberg.Compaction.CheckInterval)
	assert.Equal(t, 10, cfg.Iceberg.Compaction.MinFiles)
	assert.Equal(t, 30000, cfg.Performance.QueryTimeoutMs)
	assert.Equal(t, 30*time.Second, cfg.Performance.QueryTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Cache.MetadataTTL())
	assert.True(t, cfg.S3.UseSSL)
	assert.NoError(t, validateConfig(cfg))
}

func TestParseConfigPicksEnvironmentSection(t *testing.T) {
	data := []byte(`{
		"development": {
			"server": {"host": "127.0.0.1", "port": 9090}
		},
		"production": {
			"server": {"host": "0.0.0.0", "port": 8080},
			"catalog": {"type": "rest", "name": "prod", "uri": "https://catalog.example.com", "region": "us-west-2", "warehouse": "s3://wh"},
			"s3": {"bucket_name": "prod-bucket", "path_style_access": true, "use_ssl": false, "warehouse_path": "warehouse"},
			"performance": {"query_timeout_ms": 45000},
			"iceberg": {"compaction": {"enabled": false, "opportunistic_check_interval": 50, "small_file_threshold_mb": 32, "min_files_to_compact": 5, "max_files_per_compaction": 20}}
		}
	}`)

	dev, err := ParseConfig(data, "development")
	require.NoError(t, err)
	assert.Equal(t, 9090, dev.Server.Port)
	assert.Equal(t, "memory", dev.Catalog.Type)

	prod, err := ParseConfig(data, "production")
	require.NoError(t, err)
	assert.Equal(t, "rest", prod.Catalog.Type)
	assert.Equal(t, "prod", prod.Catalog.Name)
	assert.Equal(t, "https://catalog.example.com", prod.Catalog.URI)
	assert.Equal(t, "us-west-2", prod.Catalog.Region)
	assert.Equal(t, "production", prod.Environment)
	assert.Equal(t, "prod-bucket", prod.S3.BucketName)
	assert.True(t, prod.S3.PathStyleAccess)
	assert.False(t, prod.S3.UseSSL)
	assert.Equal(t, "warehouse", prod.S3.WarehousePath)
	assert.Equal(t, 45*time.Second, prod.Performance.QueryTimeout())
	assert.False(t, prod.Iceberg.Compaction.Enabled)
	assert.Equal(t, 50, prod.Iceberg.Compaction.CheckInterval)
	assert.Equal(t, 32, prod.Iceberg.Compaction.ThresholdMB)
	assert.Equal(t, 5, prod.Iceberg.Compaction.MinFiles)
	assert.Equal(t, 20, prod.Iceberg.Compaction.MaxFiles)
}

func TestParseConfigMissingSection(t *testing.T) {
	_, err := ParseConfig([]byte(`{"development": {}}`), "staging")
	assert.Error(t, err)
}

func TestParseConfigEnvSubstitution(t *testing.T) {
	t.Setenv("LB_TEST_BUCKET", "my-bucket")
	t.Setenv("LB_TEST_SECRET", `pa"ss\word`)

	data := []byte(`{
		"development": {
			"s3": {"bucket_name": "${LB_TEST_BUCKET}", "secret_access_key": "${LB_TEST_SECRET}"}
		}
	}`)

	cfg, err := ParseConfig(data, "development")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", cfg.S3.BucketName)
	// 含引号与反斜杠的值必须按 JSON 转义后替换
	assert.Equal(t, `pa"ss\word`, cfg.S3.SecretAccessKey)
}

func TestParseConfigMissingEnvVar(t *testing.T) {
	data := []byte(`{"development": {"s3": {"bucket_name": "${LB_DEFINITELY_UNSET_VAR}"}}}`)
	_, err := ParseConfig(data, "development")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LB_DEFINITELY_UNSET_VAR")
}

func TestValidateConfigFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Catalog.Type = "glue"
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Catalog.Type = "rest"
	cfg.Catalog.URI = ""
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Cache.ResultMaxSize = 0
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Performance.QueryTimeoutMs = 0
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Iceberg.Compaction.MinFiles = 1
	assert.Error(t, validateConfig(cfg))
}

func TestGetListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8088
	assert.Equal(t, "127.0.0.1:8088", cfg.GetListenAddress())
}

func TestIsExpressBucket(t *testing.T) {
	assert.True(t, IsExpressBucket("mydata--usw2-az1--x-s3"))
	assert.False(t, IsExpressBucket("mydata"))
	assert.False(t, IsExpressBucket("mydata-x-s3"))
}

func TestS3EndpointFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.S3.Region = "us-west-2"

	assert.Equal(t, "https://s3.us-west-2.amazonaws.com", cfg.S3EndpointFor("plain-bucket"))
	assert.Equal(t,
		"https://s3express-usw2-az1.us-west-2.amazonaws.com",
		cfg.S3EndpointFor("mydata--usw2-az1--x-s3"))

	cfg.S3.UseSSL = false
	assert.Equal(t, "http://s3.us-west-2.amazonaws.com", cfg.S3EndpointFor("plain-bucket"))
	cfg.S3.UseSSL = true

	// 显式 endpoint 优先（MinIO 等自建部署）
	cfg.S3.Endpoint = "http://localhost:9000"
	assert.Equal(t, "http://localhost:9000", cfg.S3EndpointFor("mydata--usw2-az1--x-s3"))
}
