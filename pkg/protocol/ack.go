package protocol

import "github.com/vango-dev/imclient/pkg/tars"

// PushAck is sent by the client to acknowledge a push frame so the server
// stops redelivering it.
type PushAck struct {
	Command string // Command of the acknowledged push
	Seq     int32  // Sequence id of the acknowledged push
}

// EncodeTars implements tars.Struct.
func (a *PushAck) EncodeTars(e *tars.Encoder) {
	e.WriteString(0, a.Command)
	e.WriteInt32(1, a.Seq)
}

// DecodeTars implements tars.Struct.
func (a *PushAck) DecodeTars(d *tars.Decoder) (err error) {
	if a.Command, err = d.ReadString(0, true); err != nil {
		return err
	}
	a.Seq, err = d.ReadInt32(1, true)
	return err
}

// NewPushAck creates the acknowledgement for a push frame.
func NewPushAck(push *Frame) *PushAck {
	return &PushAck{Command: push.Command, Seq: push.Seq}
}
