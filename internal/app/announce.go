package app

import (
	"sync"

	"github.com/robfig/cron/v3"

	"mediatrack/internal/config"
	logx "mediatrack/pkg/logx"
)

// announcer re-emits the current breakpoint state on a cron schedule.
type announcer struct {
	log logx.Logger
	fn  func()

	mu   sync.Mutex
	c    *cron.Cron
	id   cron.EntryID
	spec string
}

func newAnnouncer(fn func(), log logx.Logger) *announcer {
	return &announcer{
		log: log,
		fn:  fn,
		c: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
	}
}

// Schedule replaces the current entry. An empty spec disables announcing.
func (a *announcer) Schedule(spec string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if spec == a.spec {
		return nil
	}
	if a.id != 0 {
		a.c.Remove(a.id)
		a.id = 0
	}
	a.spec = ""
	if spec == "" {
		a.log.Debug("announce disabled")
		return nil
	}
	id, err := a.c.AddFunc(spec, a.fn)
	if err != nil {
		return err
	}
	a.id, a.spec = id, spec
	a.log.Debug("announce scheduled", logx.String("spec", spec))
	return nil
}

func (a *announcer) Start() { a.c.Start() }

// Stop halts the scheduler and returns once a running announce finishes.
func (a *announcer) Stop() { <-a.c.Stop().Done() }

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
