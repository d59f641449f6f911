package utils

import "os"

var (
	HTTP_PORT          = GetEnvOrDefault("HTTP_PORT", "8080")
	SHUTDOWN_SLEEP_SEC = GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)

	DATA_DIR           = GetEnvOrDefault("DATA_DIR", "data")
	PARTITION_BY       = GetEnvOrDefault("PARTITION_BY", "DAY")
	RETAIN_GENERATIONS = GetEnvOrDefaultInt("RETAIN_GENERATIONS", 2)

	CRDB_DSN = os.Getenv("CRDB_DSN")

	AWS_ACCESS_KEY_ID     = os.Getenv("AWS_ACCESS_KEY_ID")
	AWS_SECRET_ACCESS_KEY = os.Getenv("AWS_SECRET_ACCESS_KEY")
	AWS_DEFAULT_REGION    = GetEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1")

	S3_BUCKET_NAME = os.Getenv("S3_BUCKET_NAME")
	S3_ENDPOINT    = os.Getenv("S3_ENDPOINT")
	S3_PREFIX      = GetEnvOrDefault("S3_PREFIX", "ledgers")
)
