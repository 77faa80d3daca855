package meter

import (
	"bufio"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// SerialCounter talks to the pulse-counting coprocessor over a serial
// link. The protocol is line-oriented:
//
//	> START
//	< OK
//	> GET
//	< DATA <edges> <wakeup>
//	> SWP <edges> <wakeup>
//	< DATA <old-edges> <old-wakeup>
//
// The coprocessor performs the SWP exchange atomically, so edges arriving
// between the read and the install are never lost.
type SerialCounter struct {
	port serial.Port
	rd   *bufio.Reader
}

// NewSerialCounter opens the serial link to the coprocessor.
func NewSerialCounter(device string, baud int) (*SerialCounter, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open pulse counter port %s: %w", device, err)
	}
	return &SerialCounter{
		port: port,
		rd:   bufio.NewReader(port),
	}, nil
}

// Start brings the counter up.
func (c *SerialCounter) Start() error {
	reply, err := c.roundTrip("START")
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("pulse counter start: unexpected reply %q", reply)
	}
	return nil
}

// Data reads the current counter data.
func (c *SerialCounter) Data() (CounterData, error) {
	reply, err := c.roundTrip("GET")
	if err != nil {
		return CounterData{}, err
	}
	return parseData(reply)
}

// SwapData atomically installs data and returns the previous data.
func (c *SerialCounter) SwapData(data CounterData) (CounterData, error) {
	reply, err := c.roundTrip(fmt.Sprintf("SWP %d %d", data.EdgesCount, data.WakeupEdges))
	if err != nil {
		return CounterData{}, err
	}
	return parseData(reply)
}

// Close releases the serial port.
func (c *SerialCounter) Close() error {
	return c.port.Close()
}

func (c *SerialCounter) roundTrip(cmd string) (string, error) {
	if _, err := c.port.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("pulse counter write: %w", err)
	}
	line, err := c.rd.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("pulse counter read: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func parseData(reply string) (CounterData, error) {
	var data CounterData
	if _, err := fmt.Sscanf(reply, "DATA %d %d", &data.EdgesCount, &data.WakeupEdges); err != nil {
		return CounterData{}, fmt.Errorf("pulse counter reply %q: %w", reply, err)
	}
	return data, nil
}
