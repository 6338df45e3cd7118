// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for hioload-select reactors.
//
// Counters live in a private VictoriaMetrics set per Metrics value so that
// several reactors can run side by side in one process. Register the set
// globally with metrics.RegisterSet, or dump it with WritePrometheus.
package control
