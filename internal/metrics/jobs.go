package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(taskPollsTotal, uploadsTotal, autosavesTotal) }

var (
	taskPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_task_polls_total",
			Help: "Task status observations, labeled by reported status.",
		},
		[]string{"status"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_uploads_total",
			Help: "Upload orchestrations by final result.",
		},
		[]string{"result"}, // 'done', 'failed', 'invalid'
	)

	autosavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_autosaves_total",
			Help: "Document saves by type (auto/manual) and result.",
		},
		[]string{"type", "result"},
	)
)

func IncTaskPoll(status string) {
	taskPollsTotal.WithLabelValues(norm(status)).Inc()
}

func IncUpload(result string) {
	uploadsTotal.WithLabelValues(norm(result)).Inc()
}

func IncSave(saveType, result string) {
	autosavesTotal.WithLabelValues(norm(saveType), norm(result)).Inc()
}
