package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variable names read by parseEnv.
const (
	EnvHTTPAddr        = "BOOKY_HTTP_ADDR"
	EnvGRPCAddr        = "BOOKY_GRPC_ADDR"
	EnvDatabaseDSN     = "BOOKY_DATABASE_DSN"
	EnvSecretKey       = "BOOKY_SECRET_KEY"
	EnvS3User          = "BOOKY_S3_USER"
	EnvS3Password      = "BOOKY_S3_PASSWORD"
	EnvS3Bucket        = "BOOKY_S3_BUCKET"
	EnvS3Region        = "BOOKY_S3_REGION"
	EnvS3Endpoint      = "BOOKY_S3_ENDPOINT"
	EnvS3PublicBaseURL = "BOOKY_S3_PUBLIC_BASE_URL"
	EnvMaxFileSize     = "BOOKY_MAX_FILE_SIZE"
	EnvItemTimeout     = "BOOKY_ITEM_TIMEOUT"
	EnvStrictEPUB      = "BOOKY_STRICT_EPUB"
	EnvOptimizePDF     = "BOOKY_OPTIMIZE_PDF"
	EnvLogMode         = "BOOKY_LOG_MODE"
)

// defaultEnvFile is loaded when present and no -env-file flag is given.
const defaultEnvFile = ".env"

// loadEnvFile is a seam for godotenv.Load.
var loadEnvFile = godotenv.Load

// parseEnv seeds the process environment from a dotenv file and copies every
// BOOKY_* variable that is set into config. godotenv never overrides
// variables that already exist in the environment.
//
// A missing default .env is fine; a missing or broken explicit file panics,
// like a broken JSON config does.
func parseEnv(config *Config) {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := loadEnvFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	setString(&config.EndpointAddrHTTP, EnvHTTPAddr)
	setString(&config.EndpointAddrGRPC, EnvGRPCAddr)
	setString(&config.DatabaseDSN, EnvDatabaseDSN)
	setString(&config.SecretKey, EnvSecretKey)
	setString(&config.S3RootUser, EnvS3User)
	setString(&config.S3RootPassword, EnvS3Password)
	setString(&config.S3Bucket, EnvS3Bucket)
	setString(&config.S3Region, EnvS3Region)
	setString(&config.S3BaseEndpoint, EnvS3Endpoint)
	setString(&config.S3PublicBaseURL, EnvS3PublicBaseURL)
	setString(&config.LogMode, EnvLogMode)

	if v, ok := os.LookupEnv(EnvMaxFileSize); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		config.MaxFileSize = n
	}
	if v, ok := os.LookupEnv(EnvItemTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		config.ItemTimeout = d
	}
	setBool(&config.StrictEPUB, EnvStrictEPUB)
	setBool(&config.OptimizePDF, EnvOptimizePDF)
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, name string) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}
