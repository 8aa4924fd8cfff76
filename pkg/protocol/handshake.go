package protocol

import "github.com/vango-dev/imclient/pkg/tars"

// ProtocolVersion is sent during login.
const ProtocolVersion = "imclient/1"

// LoginRequest is the body of CmdLogin.
type LoginRequest struct {
	Account    int64
	Token      string
	Version    string
	ClientTime int64 // Unix milliseconds
	Resume     bool  // true on reconnect
}

// EncodeTars implements tars.Struct.
func (m *LoginRequest) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, m.Account)
	e.WriteString(1, m.Token)
	e.WriteString(2, m.Version)
	e.WriteInt64(3, m.ClientTime)
	e.WriteBool(4, m.Resume)
}

// DecodeTars implements tars.Struct.
func (m *LoginRequest) DecodeTars(d *tars.Decoder) (err error) {
	if m.Account, err = d.ReadInt64(0, true); err != nil {
		return err
	}
	if m.Token, err = d.ReadString(1, true); err != nil {
		return err
	}
	if m.Version, err = d.ReadString(2, false); err != nil {
		return err
	}
	if m.ClientTime, err = d.ReadInt64(3, false); err != nil {
		return err
	}
	m.Resume, err = d.ReadBool(4, false)
	return err
}

// LoginResponse is the body of a successful CmdLogin response.
type LoginResponse struct {
	SessionKey []byte
	Nick       string
	ServerTime int64 // Unix milliseconds
	Heartbeat  int32 // Suggested heartbeat interval in seconds, 0 = default
}

// EncodeTars implements tars.Struct.
func (m *LoginResponse) EncodeTars(e *tars.Encoder) {
	e.WriteBytes(0, m.SessionKey)
	e.WriteString(1, m.Nick)
	e.WriteInt64(2, m.ServerTime)
	e.WriteInt32(3, m.Heartbeat)
}

// DecodeTars implements tars.Struct.
func (m *LoginResponse) DecodeTars(d *tars.Decoder) (err error) {
	if m.SessionKey, err = d.ReadBytes(0, false); err != nil {
		return err
	}
	if m.Nick, err = d.ReadString(1, false); err != nil {
		return err
	}
	if m.ServerTime, err = d.ReadInt64(2, false); err != nil {
		return err
	}
	m.Heartbeat, err = d.ReadInt32(3, false)
	return err
}
