// Package hub fans protocol messages out to websocket subscribers.
//
// One goroutine owns the client set. Clients register and unregister over
// channels and each has its own write pump, so a slow monitor never blocks
// the rig tick.
package hub

import "github.com/teslashibe/go-technocrane/pkg/protocol"

// Frame is one encoded message waiting in a client's queue.
type Frame struct {
	Type string
	Data []byte
}

// Encode serialises msg for broadcast.
func Encode(msg *protocol.Message) (Frame, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: string(msg.Type), Data: data}, nil
}
