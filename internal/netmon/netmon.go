// Package netmon tracks connectivity health: the network interface link
// state and the broker connection, polled on a fixed interval.
package netmon

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/mqtt"
	"github.com/sweeney/water-guard/internal/state"
)

// PollInterval is how often connectivity is checked.
const PollInterval = 5 * time.Second

// State is one connectivity check result.
type State struct {
	// NetUp means the monitored interface reports an up operstate.
	NetUp bool

	// BrokerUp means the broker connection is established.
	BrokerUp bool
}

// LinkStatus reads the network interface link state.
type LinkStatus interface {
	// Up reports whether the link is up.
	Up() (bool, error)
}

// SysfsLink reads the interface operstate from sysfs
// (/sys/class/net/<iface>/operstate).
type SysfsLink struct {
	Iface string
}

// Up reads and parses the operstate file.
func (l *SysfsLink) Up() (bool, error) {
	path := "/sys/class/net/" + l.Iface + "/operstate"
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read operstate %s: %w", path, err)
	}
	return strings.TrimSpace(string(raw)) == "up", nil
}

// FakeLink is a scripted LinkStatus for tests.
type FakeLink struct {
	IsUp bool
	Err  error
}

func (l *FakeLink) Up() (bool, error) {
	return l.IsUp, l.Err
}

// Run polls the link and broker status every PollInterval and publishes
// the combined result. A link read failure is fatal to the task.
func Run(ctx context.Context, after func(time.Duration) <-chan time.Time, link LinkStatus, broker mqtt.ConnectionStatus, st *state.Container[State], sinks ...func(State)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-after(PollInterval):
		}

		up, err := link.Up()
		if err != nil {
			return err
		}

		_, err = st.Update(func(State) (State, error) {
			return State{NetUp: up, BrokerUp: broker.IsConnected()}, nil
		}, sinks...)
		if err != nil {
			log.Errorf("netmon: state update: %v", err)
		}
	}
}
