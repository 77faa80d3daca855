package mqtt

import "github.com/sweeney/water-guard/internal/log"

// bufferedMsg stores a serialized MQTT message for replay after
// reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// replayQueue holds publishes issued while disconnected, oldest first.
// Bounded: once full, each add evicts the oldest entry. Not safe for
// concurrent use — the caller synchronizes.
type replayQueue struct {
	max      int
	msgs     []bufferedMsg
	dropping bool
}

func newReplayQueue(max int) *replayQueue {
	return &replayQueue{max: max, msgs: make([]bufferedMsg, 0, max)}
}

func (q *replayQueue) add(msg bufferedMsg) {
	if len(q.msgs) == q.max {
		if !q.dropping {
			log.Warnf("mqtt: replay queue full (%d messages), evicting oldest", q.max)
			q.dropping = true
		}
		copy(q.msgs, q.msgs[1:])
		q.msgs[len(q.msgs)-1] = msg
		return
	}
	q.msgs = append(q.msgs, msg)
}

// takeAll empties the queue and returns its contents in arrival order.
func (q *replayQueue) takeAll() []bufferedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	out := q.msgs
	q.msgs = make([]bufferedMsg, 0, q.max)
	q.dropping = false
	return out
}

func (q *replayQueue) size() int {
	return len(q.msgs)
}
