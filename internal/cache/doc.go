/*
Package cache is the Redis-backed shared cache for discovered model
catalogs.

# Overview

The model catalog resolver keeps discovered lists in memory for the process
lifetime. When several agentchat processes talk to the same providers, the
Manager in this package lets them share one discovery result per provider
until its TTL lapses, and lets a restarted process skip the listing call.

# Types

  - Manager: JSON values under a key prefix with a default TTL
  - Config: key prefix, default TTL, health check interval

Misses are reported as ErrCacheMiss; use IsCacheMiss to test for them.
*/
package cache
