package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-r string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w string   public base URL for stored objects
//	-m int      max file size, MiB
//	-t int      per-item upload timeout, seconds (0 disables)
//	-l string   log mode (slog, zap, zap-dev)
//
// Only these flags are parsed (see flagx.FilterArgs), so the JSON and
// dotenv path flags pass through untouched.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-u", "-p", "-b", "-r", "-e", "-w", "-m", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port of the upload API")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port of the gRPC health service")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "w", config.S3PublicBaseURL, "public base URL of stored objects")
	maxFileSize := fs.Int64("m", config.MaxFileSize>>20, "max file size (in MiB)")
	itemTimeout := fs.Int("t", int(config.ItemTimeout.Seconds()), "per-item upload timeout (in seconds)")
	fs.StringVar(&config.LogMode, "l", config.LogMode, "log mode")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Unit-converted flags only apply when given, so byte-exact values from
	// earlier layers survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "m":
			config.MaxFileSize = *maxFileSize << 20
		case "t":
			config.ItemTimeout = time.Duration(*itemTimeout) * time.Second
		}
	})
}
