// Package protocol implements the frame envelope exchanged with the IM
// service on top of the tars codec.
//
// # Wire Format
//
// A byte stream carries a sequence of packets:
//
//	┌──────────────────────────┬──────────────────────────────────────┐
//	│ Length (4 bytes, BE)     │ Frame (tars fields)                  │
//	│ includes these 4 bytes   │                                      │
//	└──────────────────────────┴──────────────────────────────────────┘
//
// On message-oriented transports such as WebSocket, each binary message is
// exactly one packet.
//
// # Frames
//
// A frame carries a command name and a transport-local sequence id. The core
// never interprets either beyond routing: responses are matched to requests
// by sequence id, pushes are handed to the notice pipeline by command.
//
//	tag 0  seq      int
//	tag 1  command  string
//	tag 2  kind     byte   (request, response, push)
//	tag 3  result   int    (responses only, 0 = ok)
//	tag 4  message  string (responses only)
//	tag 5  flags    byte
//	tag 6  body     simple list
//
// # Compression
//
// Bodies larger than [CompressThreshold] are zlib-compressed by the encoder
// and marked with [FlagCompressed]. Decoding inflates them transparently.
package protocol
