package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/properbooky/internal/flagx"
	"github.com/dmitrijs2005/properbooky/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON configuration file. Pointer
// fields distinguish "absent" from a zero value so a partial file only
// overrides what it mentions.
type JsonConfig struct {
	EndpointAddrHTTP *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN      *string         `json:"database_dsn"`
	SecretKey        *string         `json:"secret_key"`
	S3RootUser       *string         `json:"s3_root_user"`
	S3RootPassword   *string         `json:"s3_root_password"`
	S3Bucket         *string         `json:"s3_bucket"`
	S3Region         *string         `json:"s3_region"`
	S3BaseEndpoint   *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL  *string         `json:"s3_public_base_url"`
	MaxFileSize      *int64          `json:"max_file_size"`
	ItemTimeout      *timex.Duration `json:"item_timeout"`
	StrictEPUB       *bool           `json:"strict_epub"`
	OptimizePDF      *bool           `json:"optimize_pdf"`
	LogMode          *string         `json:"log_mode"`
}

// parseJson loads the file named by -c/-config into config. Nothing happens
// when the flag is absent; an unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	apply(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	apply(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	apply(&config.DatabaseDSN, c.DatabaseDSN)
	apply(&config.SecretKey, c.SecretKey)
	apply(&config.S3RootUser, c.S3RootUser)
	apply(&config.S3RootPassword, c.S3RootPassword)
	apply(&config.S3Bucket, c.S3Bucket)
	apply(&config.S3Region, c.S3Region)
	apply(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	apply(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	apply(&config.MaxFileSize, c.MaxFileSize)
	apply(&config.StrictEPUB, c.StrictEPUB)
	apply(&config.OptimizePDF, c.OptimizePDF)
	apply(&config.LogMode, c.LogMode)
	if c.ItemTimeout != nil {
		config.ItemTimeout = c.ItemTimeout.Duration
	}
}

func apply[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
