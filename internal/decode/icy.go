// SPDX-License-Identifier: MIT

package decode

import (
	"io"
	"strings"
	"sync"
)

// metaReader demuxes in-band ICY metadata from a Shoutcast/Icecast stream.
// The server interleaves one metadata block after every interval audio
// bytes: a length byte counting 16-byte chunks, then that many chunks of
// text such as "StreamTitle='Artist - Title';" padded with NULs. Read
// returns only the audio bytes; parsed tags are exposed via Tag.
type metaReader struct {
	r        io.Reader
	interval int
	remain   int // audio bytes until the next metadata block

	block [255 * 16]byte // scratch for the largest possible block

	mu   sync.Mutex
	tags map[string]string
}

func newMetaReader(r io.Reader, interval int) *metaReader {
	return &metaReader{
		r:        r,
		interval: interval,
		remain:   interval,
		tags:     make(map[string]string),
	}
}

func (m *metaReader) Read(p []byte) (int, error) {
	if m.remain == 0 {
		if err := m.readBlock(); err != nil {
			return 0, err
		}
		m.remain = m.interval
	}
	if len(p) > m.remain {
		p = p[:m.remain]
	}
	n, err := m.r.Read(p)
	m.remain -= n
	return n, err
}

func (m *metaReader) readBlock() error {
	var lb [1]byte
	if _, err := io.ReadFull(m.r, lb[:]); err != nil {
		return err
	}
	size := int(lb[0]) * 16
	if size == 0 {
		// Empty block: no metadata change.
		return nil
	}
	if _, err := io.ReadFull(m.r, m.block[:size]); err != nil {
		return err
	}
	m.parse(strings.TrimRight(string(m.block[:size]), "\x00"))
	return nil
}

// parse splits "Key='value';Key='value';" pairs into the tag map. A
// malformed tail is dropped rather than reported, metadata is best effort.
func (m *metaReader) parse(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(s) > 0 {
		eq := strings.Index(s, "='")
		if eq < 0 {
			return
		}
		key := strings.TrimSpace(s[:eq])
		rest := s[eq+2:]

		end := strings.Index(rest, "';")
		if end < 0 {
			return
		}
		if key != "" {
			m.tags[key] = rest[:end]
		}
		s = rest[end+2:]
	}
}

// Tag returns the most recently seen value for key, or "" when the stream
// has not sent it.
func (m *metaReader) Tag(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tags[key]
}
