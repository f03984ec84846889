package pipeline

import (
	"log/slog"
	"time"

	"github.com/oceanline/broker/engine/console"
	"github.com/oceanline/broker/engine/geocoder"
	"github.com/oceanline/broker/engine/mail"
	"github.com/oceanline/broker/engine/matching"
	"github.com/oceanline/broker/engine/oracle"
	"github.com/oceanline/broker/engine/store"
	"github.com/oceanline/broker/pkg/metrics"
	"golang.org/x/time/rate"
)

// Deps holds every external collaborator and tunable the pipeline's task
// functions close over. Constructed once at startup in cmd/broker.
type Deps struct {
	Store    *store.Store
	Mail     *mail.Client
	SMTP     *mail.SMTPSender // optional fallback sender; nil disables it
	Oracle   *oracle.Client
	Geocoder *geocoder.Geocoder
	Matcher  *matching.Engine
	Console  *console.Broadcaster
	Log      *slog.Logger
	Queues   *Queues

	// Metrics is the Prometheus-style registry every stage records its
	// queue depth gauges and processed/failed counters into (SPEC_FULL §2).
	// Defaults to a fresh, unserved registry if left nil.
	Metrics *metrics.Registry

	Templates *Templates

	// OracleLimiter paces extraction calls (spec.md §4.4 step 6: "sleep
	// ≥1 s between units to rate-pace the oracle"). nil disables pacing.
	OracleLimiter *rate.Limiter

	AttemptInterval time.Duration // spec.md §4.1 backpressure retry interval (default 5s)
	MailPollInterval time.Duration // how often the ingest producer re-polls the mailbox
	ScanInterval     time.Duration // how often the match producer re-scans for unmatched ships
	ScanBatchSize    int           // ScanUnmatchedShips limit per pass

	OutboundFrom string // From address for the SMTP fallback sender
}

// DefaultAttemptInterval is spec.md's default backpressure retry interval.
const DefaultAttemptInterval = 5 * time.Second

// DefaultMailPollInterval governs how often the ingest producer starts a
// fresh mailbox read after draining the previous one.
const DefaultMailPollInterval = 30 * time.Second

// DefaultScanInterval governs how often the match producer re-scans the
// store for unmatched vessels.
const DefaultScanInterval = 15 * time.Second

// DefaultScanBatchSize bounds one match-producer scan pass.
const DefaultScanBatchSize = 100

// applyDefaults fills zero-valued tunables with spec.md's defaults, so
// callers only need to set what they want to override.
func (d *Deps) applyDefaults() {
	if d.AttemptInterval <= 0 {
		d.AttemptInterval = DefaultAttemptInterval
	}
	if d.MailPollInterval <= 0 {
		d.MailPollInterval = DefaultMailPollInterval
	}
	if d.ScanInterval <= 0 {
		d.ScanInterval = DefaultScanInterval
	}
	if d.ScanBatchSize <= 0 {
		d.ScanBatchSize = DefaultScanBatchSize
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Console == nil {
		d.Console = console.New(d.Log)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
}
