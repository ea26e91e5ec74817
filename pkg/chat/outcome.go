package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatstore/pkg/errs"
	"chatstore/pkg/logger"
)

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatstore_ops_total",
	Help: "Chat operations by result.",
}, []string{"op", "result"})

// ok records a successful operation outcome.
func (s *Service) ok(op string, args ...any) {
	opsTotal.WithLabelValues(op, "ok").Inc()
	logger.Info("op "+op, args...)
}

// fail records a failed outcome and returns err unchanged. critical marks
// operations whose failure loses data (creates, sends) rather than
// degrading a view.
func (s *Service) fail(op string, err error, critical bool) error {
	opsTotal.WithLabelValues(op, "error").Inc()
	if critical {
		logger.Error("op "+op, "error", err, "code", errs.CodeOf(err))
	} else {
		logger.Warn("op "+op, "error", err, "code", errs.CodeOf(err))
	}
	return err
}
