package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "packet message",
			msgType: TypePacket,
			data:    PacketData{Position: [3]float64{1, 2, 3}, Pan: 10},
			wantErr: false,
		},
		{
			name:    "result message",
			msgType: TypeResult,
			data:    ResultData{Tick: 7, TiltAngle: 12.5},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
			wantErr: false,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeStatus,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg == nil {
				t.Error("NewMessage() returned nil message")
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestPacketRoundTrip(t *testing.T) {
	original := PacketData{
		Position:     [3]float64{1.5, 2.25, -0.5},
		Pan:          45,
		Tilt:         -10,
		Roll:         2,
		TrackPos:     3.2,
		PacketNumber: 1042,
		Hours:        10,
		Minutes:      4,
		Seconds:      30,
		Frames:       12,
		HasTimecode:  true,
		CameraOn:     true,
	}

	msg, err := NewPacketMessage(original)
	if err != nil {
		t.Fatalf("NewPacketMessage() error = %v", err)
	}

	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypePacket {
		t.Errorf("Type = %v, want %v", parsed.Type, TypePacket)
	}

	packet, err := parsed.GetPacketData()
	if err != nil {
		t.Fatalf("GetPacketData() error = %v", err)
	}
	if *packet != original {
		t.Errorf("packet = %+v, want %+v", *packet, original)
	}
}

func TestPacketWireNames(t *testing.T) {
	raw := []byte(`{"type":"packet","ts":1,"data":{"position":[1,2,3],"track_pos":4,"has_timecode":true,"iris_calibrated":true}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	packet, err := msg.GetPacketData()
	if err != nil {
		t.Fatalf("GetPacketData() error = %v", err)
	}
	if packet.Position != [3]float64{1, 2, 3} || packet.TrackPos != 4 {
		t.Errorf("packet = %+v", packet)
	}
	if !packet.HasTimecode || !packet.IrisCalibrated {
		t.Errorf("flags not decoded: %+v", packet)
	}
}

func TestResultMessage(t *testing.T) {
	msg, err := NewResultMessage(ResultData{
		Tick:      3,
		Preset:    "TechnoDolly",
		TiltAngle: -4.1,
		Warnings:  []string{"gravity [jointGravity]: kinematics: joint not found"},
		Joints: map[string]JointPose{
			"jointHead": {X: 0, Y: 500, Z: 100, Roll: 20},
		},
	})
	if err != nil {
		t.Fatalf("NewResultMessage() error = %v", err)
	}

	result, err := msg.GetResultData()
	if err != nil {
		t.Fatalf("GetResultData() error = %v", err)
	}
	if result.Tick != 3 || result.Preset != "TechnoDolly" {
		t.Errorf("result = %+v", result)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v", result.Warnings)
	}
	if head := result.Joints["jointHead"]; head.Y != 500 || head.Roll != 20 {
		t.Errorf("jointHead = %+v", head)
	}
}

func TestResultOmitsEmptyFields(t *testing.T) {
	msg, err := NewResultMessage(ResultData{Tick: 1})
	if err != nil {
		t.Fatalf("NewResultMessage() error = %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg.Data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := fields["warnings"]; ok {
		t.Error("empty warnings should be omitted")
	}
	if _, ok := fields["joints"]; ok {
		t.Error("empty joints should be omitted")
	}
}

func TestPresetMessage(t *testing.T) {
	msg, err := NewPresetMessage("SuperTechno 50 Plus")
	if err != nil {
		t.Fatalf("NewPresetMessage() error = %v", err)
	}
	if msg.Type != TypePreset {
		t.Errorf("Type = %v, want %v", msg.Type, TypePreset)
	}

	data, err := msg.GetPresetData()
	if err != nil {
		t.Fatalf("GetPresetData() error = %v", err)
	}
	if data.Name != "SuperTechno 50 Plus" {
		t.Errorf("Name = %v", data.Name)
	}
}

func TestStatusAndSampleMessages(t *testing.T) {
	status, err := NewStatusMessage(StatusData{Preset: "TechnoDolly", Ticks: 99, TickRate: 60})
	if err != nil {
		t.Fatalf("NewStatusMessage() error = %v", err)
	}
	s, err := status.GetStatusData()
	if err != nil {
		t.Fatalf("GetStatusData() error = %v", err)
	}
	if s.Ticks != 99 || s.TickRate != 60 {
		t.Errorf("status = %+v", s)
	}

	sample, err := NewSampleMessage(SampleData{Source: "abc", Timecode: "10:04:30:12", LocalTime: 36270.48})
	if err != nil {
		t.Fatalf("NewSampleMessage() error = %v", err)
	}
	d, err := sample.GetSampleData()
	if err != nil {
		t.Fatalf("GetSampleData() error = %v", err)
	}
	if d.Timecode != "10:04:30:12" || d.Source != "abc" {
		t.Errorf("sample = %+v", d)
	}
}

func TestParseMessage_Invalid(t *testing.T) {
	if _, err := ParseMessage([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseData_NoData(t *testing.T) {
	msg := &Message{Type: TypePing}
	var ping PingData
	if err := msg.ParseData(&ping); err != nil {
		t.Errorf("ParseData() on empty data error = %v", err)
	}
}

func TestPingPongMessage(t *testing.T) {
	pingMsg, err := NewPingMessage("test-123")
	if err != nil {
		t.Fatalf("NewPingMessage() error = %v", err)
	}

	if pingMsg.Type != TypePing {
		t.Errorf("Type = %v, want %v", pingMsg.Type, TypePing)
	}

	pingData, err := pingMsg.GetPingData()
	if err != nil {
		t.Fatalf("GetPingData() error = %v", err)
	}

	if pingData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pingData.ID)
	}

	// Create pong response
	now := time.Now().UnixMilli()
	pongMsg, err := NewPongMessage("test-123", pingMsg.Timestamp, now)
	if err != nil {
		t.Fatalf("NewPongMessage() error = %v", err)
	}

	if pongMsg.Type != TypePong {
		t.Errorf("Type = %v, want %v", pongMsg.Type, TypePong)
	}

	pongData, err := pongMsg.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}

	if pongData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pongData.ID)
	}
	if pongData.LatencyMs < 0 {
		t.Errorf("LatencyMs = %v, should be >= 0", pongData.LatencyMs)
	}
}
