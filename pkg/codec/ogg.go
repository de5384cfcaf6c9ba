package codec

import (
	"bytes"

	"github.com/thesyncim/gopus/container/ogg"

	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
)

const oggMagic = "OggS"

// oggDemux incrementally extracts codec packets from a buffered Ogg
// stream. Pages are only parsed once the segment table says the whole
// page is buffered, so arbitrary chunking never corrupts state. Bad
// CRCs and lost sync are treated as holes: the demuxer resyncs on the
// next page magic and drops any packet left without its beginning.
type oggDemux struct {
	buf      *bytestream.Stream
	packets  [][]byte
	partial  []byte
	dropping bool
}

func newOggDemux() *oggDemux {
	return &oggDemux{buf: bytestream.New()}
}

func (d *oggDemux) feed(p []byte) int {
	n, _ := d.buf.Write(p)
	return n
}

// next returns the next complete packet, or ok=false when more input
// is needed.
func (d *oggDemux) next() ([]byte, bool) {
	for len(d.packets) == 0 {
		if !d.readPage() {
			return nil, false
		}
	}
	pkt := d.packets[0]
	d.packets = d.packets[1:]
	return pkt, true
}

func (d *oggDemux) readPage() bool {
	for {
		if d.buf.Len() < 27 {
			return false
		}

		// Resync: discard garbage before the next page magic, keeping
		// a 3-byte tail in case the magic straddles a chunk boundary.
		window := d.buf.Peek(d.buf.Len())
		idx := bytes.Index(window, []byte(oggMagic))
		if idx < 0 {
			d.buf.Discard(len(window) - 3)
			return false
		}
		if idx > 0 {
			d.buf.Discard(idx)
			window = window[idx:]
		}

		if len(window) < 27 {
			return false
		}
		nseg := int(window[26])
		if len(window) < 27+nseg {
			return false
		}
		payload := 0
		for _, s := range window[27 : 27+nseg] {
			payload += int(s)
		}
		total := 27 + nseg + payload
		if len(window) < total {
			return false
		}

		page, _, err := ogg.ParsePage(window[:total])
		if err != nil {
			// Corrupt page (usually a CRC mismatch): skip this magic
			// and hunt for the next one.
			d.buf.Discard(len(oggMagic))
			continue
		}
		d.buf.Discard(total)
		d.appendPackets(page)
		return true
	}
}

func (d *oggDemux) appendPackets(p *ogg.Page) {
	cur := d.partial
	if p.IsContinuation() {
		if cur == nil && !d.dropping {
			// The packet's beginning was lost with a dropped page.
			d.dropping = true
		}
	} else {
		// A fresh page while a packet was still open: abandon it.
		cur = nil
		d.dropping = false
	}
	d.partial = nil

	off := 0
	for _, seg := range p.Segments {
		n := int(seg)
		if off+n > len(p.Payload) {
			break
		}
		if !d.dropping {
			cur = append(cur, p.Payload[off:off+n]...)
		}
		off += n
		if n < 255 {
			if d.dropping {
				d.dropping = false
			} else {
				d.packets = append(d.packets, cur)
			}
			cur = nil
		}
	}
	d.partial = cur
}
