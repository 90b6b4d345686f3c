// Package config defines configuration for the tilegrab CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (TILEGRAB_ prefix)
//   - YAML configuration file
//
// Flags override environment variables, which override the file. Tile
// coordinate ranges are always supplied on the command line; the file
// and environment carry the slower-moving settings (endpoint, storage
// paths, worker count, retry knobs).
//
// # Example
//
//	base_url: https://tiles.example.com/VectorTileServer/tile
//	dir: zip-tiles
//	failed_log: failed_tiles.txt
//	workers: 12
//	retry:
//	  transport_retries: 3
//	  backoff: 500ms
//	  max_backoff: 30s
//	  content_retries: 3
//	  content_backoff: 500ms
package config
