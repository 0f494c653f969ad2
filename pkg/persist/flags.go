package persist

import (
	"context"
	"flag"
	"time"
)

var (
	backendFlag    = flag.String("persist_backend", BackendMemory, "Durable slot medium: memory/file/sql/s3")
	timeoutFlag    = flag.Duration("persist_timeout", 5*time.Second, "Deadline of a single slot read or write.")
	dirFlag        = flag.String("persist_dir", "", "Slot directory of the file backend; defaults to $FIG_CACHE_DIR or <user cache dir>/fig.")
	sqlDriverFlag  = flag.String("persist_sql_driver", string(DialectSQLite), "SQL driver of the sql backend: sqlite3/postgres/mysql")
	sqlDSNFlag     = flag.String("persist_sql_dsn", "", "Data source name of the sql backend.")
	s3BucketFlag   = flag.String("persist_s3_bucket", "", "Bucket of the s3 backend.")
	s3PrefixFlag   = flag.String("persist_s3_prefix", "fig/", "Object key prefix of the s3 backend.")
	s3RegionFlag   = flag.String("persist_s3_region", "", "Region override of the s3 backend.")
	s3EndpointFlag = flag.String("persist_s3_endpoint", "", "Custom endpoint of the s3 backend, e.g. a MinIO server.")
)

// Timeout returns the value of --persist_timeout.
func Timeout() time.Duration {
	return *timeoutFlag
}

// OpenFromFlags opens the slot store selected by --persist_backend.
func OpenFromFlags(ctx context.Context) (SlotStore, error) {
	params := map[string]any{}
	switch *backendFlag {
	case BackendFile:
		params["dir"] = *dirFlag
	case BackendSQL:
		params["driver"] = *sqlDriverFlag
		params["dsn"] = *sqlDSNFlag
	case BackendS3:
		params["bucket"] = *s3BucketFlag
		params["prefix"] = *s3PrefixFlag
		params["region"] = *s3RegionFlag
		params["endpoint"] = *s3EndpointFlag
	}
	return Open(ctx, *backendFlag, params)
}
