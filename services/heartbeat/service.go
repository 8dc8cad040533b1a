// Package heartbeat publishes a periodic liveness beat on the bus and
// answers ping requests. The beat carries the command-loop phase so a
// host bridge can tell a wedged board from a busy one.
package heartbeat

import (
	"context"
	"time"

	"trinkeycode-go/bus"
	"trinkeycode-go/types"
)

var (
	topicHeartbeat       = bus.T("telemetry", "heartbeat")
	topicPing            = bus.T("telemetry", "ping")
	topicConfigHeartbeat = bus.T("config", "heartbeat")
)

const defaultInterval = time.Second

// Service emits one Heartbeat per interval. Interval and Phase may be
// set before Start; both have working defaults.
type Service struct {
	Interval time.Duration
	Phase    func() types.SessionPhase // nil omits the phase field

	seq uint32
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	pingSub := conn.Subscribe(topicPing)
	defer conn.Unsubscribe(pingSub)

	interval := s.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	origin := time.Now()

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			s.seq++
			beat := types.Heartbeat{
				Seq:      s.seq,
				UptimeMs: time.Since(origin).Milliseconds(),
			}
			if s.Phase != nil {
				beat.Phase = s.Phase()
			}
			conn.Publish(conn.NewMessage(topicHeartbeat, beat, false))
		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(types.HeartbeatConfig)
			if !ok || cfg.IntervalMs == 0 {
				println("Warn: ignoring heartbeat config message")
				continue
			}
			interval = time.Duration(cfg.IntervalMs) * time.Millisecond
			tick.Reset(interval)
			println("Info: heartbeat interval set to", cfg.IntervalMs, "ms")
		case msg := <-pingSub.Channel():
			if msg.CanReply() {
				if err := conn.Reply(msg, types.OKReply{OK: true}, false); err != nil {
					println("Warn: heartbeat ping reply:", err.Error())
				}
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
