package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewPacketMessage creates a raw telemetry packet message
func NewPacketMessage(p PacketData) (*Message, error) {
	return NewMessage(TypePacket, p)
}

// NewSampleMessage creates a decoded sample message
func NewSampleMessage(s SampleData) (*Message, error) {
	return NewMessage(TypeSample, s)
}

// NewResultMessage creates a solved pose message
func NewResultMessage(r ResultData) (*Message, error) {
	return NewMessage(TypeResult, r)
}

// NewStatusMessage creates a status message
func NewStatusMessage(s StatusData) (*Message, error) {
	return NewMessage(TypeStatus, s)
}

// NewPresetMessage creates a preset selection message
func NewPresetMessage(name string) (*Message, error) {
	return NewMessage(TypePreset, PresetData{Name: name})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetPacketData extracts a telemetry packet from a message
func (m *Message) GetPacketData() (*PacketData, error) {
	var data PacketData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSampleData extracts a decoded sample from a message
func (m *Message) GetSampleData() (*SampleData, error) {
	var data SampleData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetResultData extracts a solved pose from a message
func (m *Message) GetResultData() (*ResultData, error) {
	var data ResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts a status snapshot from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPresetData extracts a preset selection from a message
func (m *Message) GetPresetData() (*PresetData, error) {
	var data PresetData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
