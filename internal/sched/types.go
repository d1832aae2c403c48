package sched

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"medassist/pkg/logx"
)

// Config controls the task scheduler service.
type Config struct {
	Workers  int
	Timezone string // IANA TZ; empty means local
}

type task struct {
	name  string
	run   func(ctx context.Context) error
	state *runState
}

// runState is shared between cron invocations of one definition so an
// invocation can be skipped while the previous one still runs.
type runState struct {
	mu      sync.Mutex
	running bool
}

type scheduleDef struct {
	name    string
	spec    string // cron spec or @every
	job     func(ctx context.Context) error
	entryID cron.EntryID
	state   *runState
}

// Service triggers jobs on cron/interval specs and one-shot timers, and
// executes them on a small worker pool.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	queue  chan task
	stopCh chan struct{}

	// One-shot timers. Versioned so a replaced timer's late callback is
	// ignored instead of firing a stale job.
	tmu     sync.Mutex
	timers  map[string]*time.Timer
	onceJob map[string]func(ctx context.Context) error
	onceVer map[string]uint64

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}
