package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	taskRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skymood",
		Name:      "task_running",
		Help:      "Whether a supervised task is running (1=running, 0=stopped).",
	}, []string{"task"})

	taskLaunches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skymood",
		Name:      "task_launches_total",
		Help:      "Total number of task processes launched.",
	}, []string{"task"})

	taskExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skymood",
		Name:      "task_exits_total",
		Help:      "Total number of task processes that reached a terminal state, by state.",
	}, []string{"task", "state"})

	forcedKills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skymood",
		Name:      "task_forced_kills_total",
		Help:      "Total number of tasks killed after the grace period expired.",
	}, []string{"task"})

	shutdownDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skymood",
		Name:      "shutdown_duration_seconds",
		Help:      "Duration of the group shutdown sequence in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skymood",
		Name:      "build_info",
		Help:      "Build metadata for the running skymood binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(taskRunning, taskLaunches, taskExits, forcedKills, shutdownDuration, buildInfo)
}

// Registry returns the Prometheus registry containing all skymood metrics.
func Registry() *prometheus.Registry {
	return registry
}

// TaskLaunched records a successful launch and marks the task running.
func TaskLaunched(task string) {
	if task == "" {
		return
	}
	taskLaunches.WithLabelValues(task).Inc()
	taskRunning.WithLabelValues(task).Set(1)
}

// TaskStopped records the terminal state reached by a task.
func TaskStopped(task, state string) {
	if task == "" {
		return
	}
	taskRunning.WithLabelValues(task).Set(0)
	taskExits.WithLabelValues(task, state).Inc()
}

// IncrementForcedKill counts a task killed after ignoring termination.
func IncrementForcedKill(task string) {
	if task == "" {
		return
	}
	forcedKills.WithLabelValues(task).Inc()
}

// ObserveShutdown records how long the shutdown sequence took.
func ObserveShutdown(d time.Duration) {
	shutdownDuration.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetTask clears all series for a task.
func ResetTask(task string) {
	if task == "" {
		return
	}
	taskRunning.DeleteLabelValues(task)
	taskLaunches.DeleteLabelValues(task)
	forcedKills.DeleteLabelValues(task)
	taskExits.DeletePartialMatch(prometheus.Labels{"task": task})
}
