package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vango-dev/imclient/pkg/tars"
)

// FrameKind identifies the role of a frame.
type FrameKind uint8

const (
	KindRequest  FrameKind = 0x00 // Client → Server request
	KindResponse FrameKind = 0x01 // Server → Client response, matched by seq
	KindPush     FrameKind = 0x02 // Server → Client notice
)

// String returns the string representation of the frame kind.
func (k FrameKind) String() string {
	switch k {
	case KindRequest:
		return "Request"
	case KindResponse:
		return "Response"
	case KindPush:
		return "Push"
	default:
		return "Unknown"
	}
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	FlagCompressed FrameFlags = 0x01 // Body is zlib compressed
	FlagNoReply    FrameFlags = 0x02 // Request expects no response
)

// Has returns true if the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Packet errors.
var (
	ErrPacketTooLarge   = errors.New("protocol: packet too large")
	ErrPacketTooSmall   = errors.New("protocol: packet length below header size")
	ErrLengthMismatch   = errors.New("protocol: packet length does not match data")
	ErrInvalidFrameKind = errors.New("protocol: invalid frame kind")
)

var frameTable = tars.MustTable("Frame",
	tars.Desc("seq", 0, tars.Int),
	tars.Desc("command", 1, tars.String1),
	tars.Desc("kind", 2, tars.Byte),
	tars.Desc("result", 3, tars.Int),
	tars.Desc("message", 4, tars.String1),
	tars.Desc("flags", 5, tars.Byte),
	tars.Desc("body", 6, tars.SimpleList),
)

// Frame is one complete protocol message.
type Frame struct {
	Seq     int32
	Command string
	Kind    FrameKind
	Result  ResultCode
	Message string
	Flags   FrameFlags
	Body    []byte
}

// TarsTable returns the field table of Frame.
func (f *Frame) TarsTable() *tars.Table {
	return frameTable
}

// EncodeTars implements tars.Struct.
func (f *Frame) EncodeTars(e *tars.Encoder) {
	e.WriteInt32(frameTable.Tag("seq"), f.Seq)
	e.WriteString(frameTable.Tag("command"), f.Command)
	e.WriteInt8(frameTable.Tag("kind"), int8(f.Kind))
	if f.Result != ResultOK {
		e.WriteInt32(frameTable.Tag("result"), int32(f.Result))
	}
	if f.Message != "" {
		e.WriteString(frameTable.Tag("message"), f.Message)
	}
	if f.Flags != 0 {
		e.WriteInt8(frameTable.Tag("flags"), int8(f.Flags))
	}
	e.WriteBytes(frameTable.Tag("body"), f.Body)
}

// DecodeTars implements tars.Struct.
func (f *Frame) DecodeTars(d *tars.Decoder) error {
	seq, err := d.ReadInt32(frameTable.Tag("seq"), true)
	if err != nil {
		return err
	}
	cmd, err := d.ReadString(frameTable.Tag("command"), true)
	if err != nil {
		return err
	}
	kind, err := d.ReadInt8(frameTable.Tag("kind"), false)
	if err != nil {
		return err
	}
	result, err := d.ReadInt32(frameTable.Tag("result"), false)
	if err != nil {
		return err
	}
	msg, err := d.ReadString(frameTable.Tag("message"), false)
	if err != nil {
		return err
	}
	flags, err := d.ReadInt8(frameTable.Tag("flags"), false)
	if err != nil {
		return err
	}
	body, err := d.ReadBytes(frameTable.Tag("body"), false)
	if err != nil {
		return err
	}
	*f = Frame{
		Seq:     seq,
		Command: cmd,
		Kind:    FrameKind(kind),
		Result:  ResultCode(result),
		Message: msg,
		Flags:   FrameFlags(uint8(flags)),
		Body:    body,
	}
	return nil
}

// String returns a short description for logs.
func (f *Frame) String() string {
	return fmt.Sprintf("%s %s seq=%d result=%d body=%dB", f.Kind, f.Command, f.Seq, f.Result, len(f.Body))
}

// EncodeFrame encodes f without the length prefix, compressing the body
// when it exceeds CompressThreshold.
func EncodeFrame(f *Frame) ([]byte, error) {
	out := *f
	if !out.Flags.Has(FlagCompressed) && len(out.Body) > CompressThreshold {
		body, err := Deflate(out.Body)
		if err != nil {
			return nil, err
		}
		if len(body) < len(out.Body) {
			out.Body = body
			out.Flags |= FlagCompressed
		}
	}
	return tars.Marshal(&out), nil
}

// DecodeFrame decodes a frame encoded by EncodeFrame. Compressed bodies are
// inflated and the flag cleared. Errors from the codec are *tars.CodecError.
func DecodeFrame(data []byte) (*Frame, error) {
	f := &Frame{}
	if err := tars.Unmarshal(data, f); err != nil {
		return nil, err
	}
	if f.Kind > KindPush {
		return nil, &tars.CodecError{Kind: tars.KindMalformed, Op: "decode frame", Tag: 2, Err: ErrInvalidFrameKind}
	}
	if f.Flags.Has(FlagCompressed) {
		body, err := Inflate(f.Body)
		if err != nil {
			return nil, &tars.CodecError{Kind: tars.KindMalformed, Op: "inflate body", Tag: 6, Err: err}
		}
		f.Body = body
		f.Flags &^= FlagCompressed
	}
	return f, nil
}

// EncodePacket encodes f with its length prefix.
func EncodePacket(f *Frame) ([]byte, error) {
	payload, err := EncodeFrame(f)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, PacketHeaderSize, PacketHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(PacketHeaderSize+len(payload)))
	return append(buf, payload...), nil
}

// DecodePacket decodes one complete packet, including its length prefix.
func DecodePacket(data []byte) (*Frame, error) {
	if len(data) < PacketHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	n := int(binary.BigEndian.Uint32(data))
	if n != len(data) {
		return nil, fmt.Errorf("%w: header %d, have %d", ErrLengthMismatch, n, len(data))
	}
	return DecodeFrame(data[PacketHeaderSize:])
}

// ReadPacket reads one packet from r and returns the frame bytes without the
// length prefix. maxSize <= 0 selects DefaultMaxPacketSize.
func ReadPacket(r io.Reader, maxSize int) ([]byte, error) {
	var header [PacketHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(header[:]))
	if n < PacketHeaderSize {
		return nil, ErrPacketTooSmall
	}
	if n > clampPacketSize(maxSize) {
		return nil, ErrPacketTooLarge
	}
	payload := make([]byte, n-PacketHeaderSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// ReadFrame reads and decodes one frame from r.
func ReadFrame(r io.Reader, maxSize int) (*Frame, error) {
	payload, err := ReadPacket(r, maxSize)
	if err != nil {
		return nil, err
	}
	return DecodeFrame(payload)
}

// WriteFrame writes a complete packet for f to w.
func WriteFrame(w io.Writer, f *Frame) error {
	data, err := EncodePacket(f)
	if err != nil {
		return err
	}
	if len(data) > HardMaxPacketSize {
		return ErrPacketTooLarge
	}
	_, err = w.Write(data)
	return err
}

// NewRequest creates a request frame.
func NewRequest(seq int32, command string, body []byte) *Frame {
	return &Frame{Seq: seq, Command: command, Kind: KindRequest, Body: body}
}

// NewResponse creates a successful response frame for req.
func NewResponse(req *Frame, body []byte) *Frame {
	return &Frame{Seq: req.Seq, Command: req.Command, Kind: KindResponse, Body: body}
}

// NewErrorResponse creates a rejection for req.
func NewErrorResponse(req *Frame, code ResultCode, message string) *Frame {
	return &Frame{Seq: req.Seq, Command: req.Command, Kind: KindResponse, Result: code, Message: message}
}

// NewPush creates a push frame.
func NewPush(seq int32, command string, body []byte) *Frame {
	return &Frame{Seq: seq, Command: command, Kind: KindPush, Body: body}
}
