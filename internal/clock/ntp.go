package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	"petfeeder/internal/logger"

	"github.com/beevik/ntp"
	"github.com/robfig/cron/v3"
)

const ntpTimeout = 5 * time.Second

// QueryFunc returns the offset between the local clock and the NTP server.
type QueryFunc func(server string) (time.Duration, error)

// NTPClock corrects the host clock with an offset obtained from an NTP
// server. Synchronisation runs on a cron schedule off the control loop;
// Now only reads the last stored offset.
type NTPClock struct {
	server string
	resync string
	loc    *time.Location
	log    *logger.Logger

	query QueryFunc
	now   func() time.Time

	offset atomic.Int64
	synced atomic.Bool

	cron *cron.Cron
}

// NewNTPClock builds an unsynced clock. Call Start to begin synchronising.
func NewNTPClock(server, resync string, loc *time.Location, log *logger.Logger) *NTPClock {
	return &NTPClock{
		server: server,
		resync: resync,
		loc:    loc,
		log:    log,
		query:  queryNTP,
		now:    time.Now,
	}
}

func queryNTP(server string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: ntpTimeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Start schedules periodic resyncs and kicks off the first one in the background.
func (c *NTPClock) Start() error {
	c.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := c.cron.AddFunc(c.resync, func() { _ = c.Sync() }); err != nil {
		return fmt.Errorf("schedule ntp resync %q: %w", c.resync, err)
	}
	c.cron.Start()
	go func() { _ = c.Sync() }()
	return nil
}

// Stop halts the resync schedule and waits for a running sync to finish.
func (c *NTPClock) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
}

// Sync queries the server once and stores the offset on success.
func (c *NTPClock) Sync() error {
	off, err := c.query(c.server)
	if err != nil {
		if c.log != nil {
			c.log.Warnw("ntp_sync_failed", "server", c.server, "err", err)
		}
		return fmt.Errorf("ntp query %s: %w", c.server, err)
	}
	c.offset.Store(int64(off))
	first := !c.synced.Swap(true)
	if c.log != nil {
		if first {
			c.log.Infow("ntp_synced", "server", c.server, "offset", off)
		} else {
			c.log.Debugw("ntp_resynced", "server", c.server, "offset", off)
		}
	}
	return nil
}

// Synced reports whether at least one sync succeeded.
func (c *NTPClock) Synced() bool { return c.synced.Load() }

func (c *NTPClock) Now() Moment {
	t := c.now().Add(time.Duration(c.offset.Load())).In(c.loc)
	m := At(t)
	m.Synced = c.synced.Load()
	return m
}
