// Package transcode converts between the protobuf binary wire format and
// JSON for one message type of a resolved catalog.
package transcode

import (
	"github.com/rs/zerolog"

	"github.com/reoring/protoskema/jsoncodec"
	"github.com/reoring/protoskema/schema"
	"github.com/reoring/protoskema/wire"
)

// Options bundles the codec options used by a Transcoder.
type Options struct {
	JSON     jsoncodec.MarshalOptions
	FromJSON jsoncodec.UnmarshalOptions
	Wire     wire.MarshalOptions
	FromWire wire.UnmarshalOptions
	// Logger receives debug output; the zero value discards it.
	Logger zerolog.Logger
}

// Transcoder is safe for concurrent use: every call builds its own message
// tree and the catalog is read-only.
type Transcoder struct {
	desc *schema.MessageDescriptor
	opts Options
}

// New resolves messageName against cat once.
func New(cat *schema.Catalog, messageName string, opts Options) (*Transcoder, error) {
	md, err := cat.LookupMessage(messageName)
	if err != nil {
		return nil, err
	}
	return &Transcoder{desc: md, opts: opts}, nil
}

// Descriptor returns the message type being transcoded.
func (t *Transcoder) Descriptor() *schema.MessageDescriptor { return t.desc }

// BinaryToJSON decodes wire bytes and renders them as JSON. Unknown wire
// records have no JSON form and are dropped.
func (t *Transcoder) BinaryToJSON(b []byte) ([]byte, error) {
	m, err := t.opts.FromWire.Unmarshal(t.desc, b)
	if err != nil {
		return nil, err
	}
	if n := len(m.Unknown()); n > 0 {
		t.opts.Logger.Debug().Str("message", t.desc.FullName).Int("bytes", n).Msg("dropping unknown wire records")
	}
	return t.opts.JSON.Marshal(m)
}

// JSONToBinary parses JSON text and encodes it in the wire format.
func (t *Transcoder) JSONToBinary(text []byte) ([]byte, error) {
	m, err := t.opts.FromJSON.Unmarshal(t.desc, text)
	if err != nil {
		return nil, err
	}
	return t.opts.Wire.Marshal(m)
}
