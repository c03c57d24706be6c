// Package protocol defines the WebSocket message types exchanged between a
// telemetry bridge, the rig and its monitors.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Bridge → Rig messages
	TypePacket MessageType = "packet" // Raw hardware telemetry packet

	// Rig → Monitor messages
	TypeSample MessageType = "sample" // Decoded telemetry sample
	TypeResult MessageType = "result" // Solved crane pose
	TypeStatus MessageType = "status" // Rig status snapshot

	// Monitor → Rig messages
	TypePreset MessageType = "preset" // Select a crane model

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Bridge → Rig Message Types
// =============================================================================

// PacketData is one hardware packet as forwarded by a telemetry bridge.
// Positions are in tracker units and tracker axis order.
type PacketData struct {
	Position     [3]float64 `json:"position"`
	Pan          float64    `json:"pan"`
	Tilt         float64    `json:"tilt"`
	Roll         float64    `json:"roll"`
	TrackPos     float64    `json:"track_pos"`
	PacketNumber int64      `json:"packet_number"`

	Zoom  float64 `json:"zoom"`  // Normalised encoder value
	Focus float64 `json:"focus"` // Normalised encoder value
	Iris  float64 `json:"iris"`  // Normalised encoder value

	Hours       uint32 `json:"hours"`
	Minutes     uint32 `json:"minutes"`
	Seconds     uint32 `json:"seconds"`
	Frames      uint32 `json:"frames"`
	HasTimecode bool   `json:"has_timecode"`

	CameraOn bool `json:"camera_on"`
	Running  bool `json:"running"`

	ZoomCalibrated  bool `json:"zoom_calibrated"`
	FocusCalibrated bool `json:"focus_calibrated"`
	IrisCalibrated  bool `json:"iris_calibrated"`
}

// =============================================================================
// Rig → Monitor Message Types
// =============================================================================

// SampleData is a decoded telemetry sample in rig space
type SampleData struct {
	Source        string     `json:"source"`
	Position      [3]float64 `json:"position"`
	Pan           float64    `json:"pan"`
	Tilt          float64    `json:"tilt"`
	Roll          float64    `json:"roll"`
	TrackPosition float64    `json:"track_position"`
	PacketNumber  int64      `json:"packet_number"`
	Timecode      string     `json:"timecode"`
	LocalTime     float64    `json:"local_time"` // Seconds
	Zoom          float64    `json:"zoom"`
	Focus         float64    `json:"focus"`
	Iris          float64    `json:"iris"`
}

// ResultData is the solved pose of one tick
type ResultData struct {
	Tick            uint64               `json:"tick"`
	Preset          string               `json:"preset"`
	Live            bool                 `json:"live"`
	GroundHeight    float64              `json:"ground_height"`
	TiltAngle       float64              `json:"tilt_angle"`
	ExtensionLength float64              `json:"extension_length"`
	ColumnYaw       float64              `json:"column_yaw"`
	Reextended      bool                 `json:"reextended"`
	Residual        float64              `json:"residual"`
	Warnings        []string             `json:"warnings,omitempty"`
	Joints          map[string]JointPose `json:"joints,omitempty"`
}

// JointPose is one joint in component space
type JointPose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// StatusData summarises the rig
type StatusData struct {
	Preset    string  `json:"preset"`
	Strategy  string  `json:"strategy"`
	Live      bool    `json:"live"`
	Ticks     uint64  `json:"ticks"`
	Clients   int     `json:"clients"`
	Recording string  `json:"recording,omitempty"` // Active take ID
	TickRate  float64 `json:"tick_rate"`
}

// =============================================================================
// Monitor → Rig Message Types
// =============================================================================

// PresetData selects a crane model by name
type PresetData struct {
	Name string `json:"name"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
