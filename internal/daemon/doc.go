// Package daemon runs the long-lived torrank process.
//
// It holds a flock-based instance lock in the data directory, serves the HTTP
// API (ranking, rule tests, group and custom rule maintenance, Prometheus
// metrics) and watches the config file so rule edits take effect without a
// restart. A config change that fails to load or compile is logged and the
// previous snapshot keeps serving.
//
// Components run under one errgroup: the first failure or a cancelled
// context stops the rest and triggers a graceful HTTP shutdown.
package daemon
