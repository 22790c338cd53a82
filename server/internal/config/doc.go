// Package config loads the server configuration from config.yaml.
//
// Sections:
//   - server       http_port (default 8080)
//   - log          level: debug|info|warn|error; file, max_size_mb, max_backups, max_age_days
//   - historian    driver, dsn_env, connect_timeout, cycle_count
//   - registry     driver, dsn_env for the read-only batch registry
//   - live         poll_interval (default 2s), cache_ttl
//   - tags         ph_template / tcc_template, one %d each for the reactor line
//   - simulator    step between synthetic range samples
//   - flow_rate    operation/phase/parameter filter and time unit
//   - correlation  max_concurrency
//
// DSNs are never stored in the file; dsn_env names the environment variable
// that holds them. Load(path) applies defaults before unmarshalling, then
// validates. Watch(ctx, path, fn) reloads on every write.
package config
