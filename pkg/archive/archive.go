// Package archive exports retrieved message history as newline-delimited
// JSON, optionally gzip compressed, to a local directory or an S3 bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/gzip"

	"github.com/vango-dev/imclient/pkg/roaming"
)

// ErrEmpty is returned by Export when the history yielded no groups.
var ErrEmpty = errors.New("archive: no messages to export")

// Archiver stores one exported history object under key.
type Archiver interface {
	Store(ctx context.Context, obj *Object) error
}

// Object is one encoded export ready to be stored.
type Object struct {
	Key             string
	ContentType     string
	ContentEncoding string
	Body            []byte
	Count           int
}

// Record is the JSON form of one message group.
type Record struct {
	Peer      int64  `json:"peer"`
	Seq       int64  `json:"seq"`
	Time      int64  `json:"time"`
	From      int64  `json:"from"`
	Text      string `json:"text"`
	Fragments int    `json:"fragments,omitempty"`
}

// NewRecord converts g.
func NewRecord(g *roaming.MessageGroup) Record {
	r := Record{Peer: g.Peer, Seq: g.Seq, Time: g.Time, From: g.From, Text: g.Text()}
	if n := len(g.Messages); n > 1 {
		r.Fragments = n
	}
	return r
}

// Key returns the object key for the history of peer over [start, end].
func Key(peer, start, end int64) string {
	return fmt.Sprintf("%d/%d-%d.jsonl", peer, start, end)
}

// Options controls encoding.
type Options struct {
	// Gzip compresses the body and appends ".gz" to the key.
	Gzip bool
}

// Encode drains history into an Object. The first error yielded by
// history is returned together with whatever was encoded before it.
func Encode(key string, history iter.Seq2[*roaming.MessageGroup, error], opts Options) (*Object, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf
	var zw *gzip.Writer
	if opts.Gzip {
		zw = gzip.NewWriter(&buf)
		w = zw
	}

	enc := json.NewEncoder(w)
	n := 0
	var failed error
	for g, err := range history {
		if err != nil {
			failed = err
			break
		}
		if err := enc.Encode(NewRecord(g)); err != nil {
			return nil, err
		}
		n++
	}

	obj := &Object{Key: key, ContentType: "application/x-ndjson", Count: n}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return nil, err
		}
		obj.Key += ".gz"
		obj.ContentEncoding = "gzip"
	}
	obj.Body = buf.Bytes()
	return obj, failed
}

// Decode reads records written by Encode.
func Decode(obj *Object) ([]Record, error) {
	var r io.Reader = bytes.NewReader(obj.Body)
	if obj.ContentEncoding == "gzip" {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	var out []Record
	dec := json.NewDecoder(r)
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}

// Export encodes history and stores it with a. A partial history is still
// stored when the sequence ended with an error; the error is returned
// afterwards.
func Export(ctx context.Context, a Archiver, key string, history iter.Seq2[*roaming.MessageGroup, error], opts Options) (*Object, error) {
	obj, failed := Encode(key, history, opts)
	if obj == nil {
		return nil, failed
	}
	if obj.Count == 0 {
		if failed != nil {
			return obj, failed
		}
		return obj, ErrEmpty
	}
	if err := a.Store(ctx, obj); err != nil {
		return obj, fmt.Errorf("archive: store %s: %w", obj.Key, err)
	}
	return obj, failed
}
