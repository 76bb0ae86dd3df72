package bus

import (
	"log/slog"
	"time"

	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/pkg/schema"
)

// ProgressPublisher forwards item progress of one job as
// schema.ProgressEvent messages. Publish failures are logged, never fatal.
type ProgressPublisher struct {
	pub     JSONPublisher
	subject string
	jobID   string
	logger  *slog.Logger
}

func NewProgressPublisher(pub JSONPublisher, subject, jobID string, logger *slog.Logger) *ProgressPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressPublisher{pub: pub, subject: subject, jobID: jobID, logger: logger}
}

func (p *ProgressPublisher) OnProgress(e convert.Event) {
	evt := schema.ProgressEvent{
		JobID:      p.jobID,
		ItemID:     e.ItemID,
		Stage:      string(e.Stage),
		Percent:    e.Percent,
		HappenedAt: time.Now().Unix(),
	}
	if err := p.pub.PublishJSON(p.subject, evt); err != nil {
		p.logger.Warn("failed to publish progress", "job_id", p.jobID, "item_id", e.ItemID, "err", err)
	}
}
