// Package config loads the portfolio graph configuration.
//
// # Configuration Sources
//
// Values are layered, later sources win:
//
//	1. Defaults (Default)
//	2. YAML file: $PGRAPH_CONFIG, ./config.yaml or ./configs/config.yaml
//	3. Environment variables prefixed with PGRAPH_
//
// # Environment Variables
//
//	PGRAPH_SERVER_PORT=8000
//	PGRAPH_LOGGING_LEVEL=debug
//	PGRAPH_LOGGING_OUTPUT=both
//	PGRAPH_PATHS_DATA_DIR=/srv/portfolio/data
//	PGRAPH_GRAPH_DEFAULT_MIN_CORR=0.3
//	PGRAPH_SECURITY_ALLOWED_ORIGINS=http://localhost:3000,http://localhost:5173
//
// # Paths
//
// Relative paths resolve against paths.base_dir, or the working directory
// when it is unset. Datasets live under <data_dir>/<version>/.
package config
