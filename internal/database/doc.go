/*
Package database opens the relational backend of the sql credential store
and manages its connection pool.

# Drivers

Open selects a gorm dialector from config.DatabaseConfig.Driver:
postgres, mysql or sqlite (pure Go, no cgo).

# PoolManager

PoolManager wraps the gorm handle with pool tuning, a background
PingContext health check stopped by Close, a Prometheus collector for
sql.DBStats and
WithTransaction / WithTransactionRetry helpers. Retries cover deadlocks,
serialization failures, locked sqlite files and dropped connections.
*/
package database
