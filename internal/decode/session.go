// SPDX-License-Identifier: MIT

package decode

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ik5/audpbx/audio"
	"github.com/ik5/audpbx/formats/mp3"
	"github.com/ik5/audpbx/utils"
)

// OutputSampleRate is the fixed playback rate. Sources at any other rate
// are resampled on the fly.
const OutputSampleRate = 44100

// Session is an open stream being decoded to stereo s16le PCM at
// OutputSampleRate. All methods except BytesReceived and Metadata must be
// called from the pipeline goroutine that owns the session.
type Session struct {
	resp    *http.Response
	counter *countingReader
	meta    *metaReader // nil when the server sends no metaint
	src     audio.Source
	headers map[string]string
	label   string

	floatBuf []float32
}

// Open connects to url, negotiates in-band ICY metadata, and stands up
// the decode and resample chain. The returned session must be closed.
func Open(ctx context.Context, url string) (*Session, error) {
	resp, err := connect(ctx, url)
	if err != nil {
		return nil, err
	}

	var meta *metaReader
	var rd io.Reader = resp.Body
	if interval, _ := strconv.Atoi(resp.Header.Get("icy-metaint")); interval > 0 {
		meta = newMetaReader(rd, interval)
		rd = meta
	}

	// The counter sits above the metadata demuxer so the bitrate tally
	// sees audio bytes only, not ICY blocks.
	counter := &countingReader{r: rd}

	src, err := mp3.Decoder{}.Decode(counter)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("open decoder: %w", err)
	}
	if src.SampleRate() != OutputSampleRate {
		src = audio.NewResampler(src, OutputSampleRate)
	}

	headers := make(map[string]string)
	for _, key := range []string{"icy-name", "icy-genre", "icy-br"} {
		if v := resp.Header.Get(key); v != "" {
			headers[key] = v
		}
	}

	label := "MP3"
	if br := headers["icy-br"]; br != "" {
		label = fmt.Sprintf("MP3 %skbps", br)
	}

	return &Session{
		resp:    resp,
		counter: counter,
		meta:    meta,
		src:     src,
		headers: headers,
		label:   label,
	}, nil
}

// ReadPCM fills dst with interleaved stereo s16le bytes and returns the
// byte count. A zero count with a nil error means no frames were ready;
// any error is session fatal.
func (s *Session) ReadPCM(dst []byte) (int, error) {
	want := len(dst) / 2
	if cap(s.floatBuf) < want {
		s.floatBuf = make([]float32, want)
	}

	n, err := s.src.ReadSamples(s.floatBuf[:want])
	for i := 0; i < n; i++ {
		v := utils.Float32ToInt16(s.floatBuf[i])
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
	}
	return n * 2, err
}

// Metadata resolves key against the in-band ICY tags first, then the
// response headers. Unknown keys resolve to "", absence is not an error.
func (s *Session) Metadata(key string) string {
	if s.meta != nil {
		if v := s.meta.Tag(key); v != "" {
			return v
		}
	}
	lower := strings.ToLower(key)
	switch lower {
	case "genre":
		lower = "icy-genre"
	case "name":
		lower = "icy-name"
	}
	return s.headers[lower]
}

// BytesReceived returns the compressed audio bytes read off the wire so
// far, ICY metadata blocks excluded. Safe to call from any goroutine.
func (s *Session) BytesReceived() uint64 {
	return s.counter.count()
}

// FormatLabel describes the stream format, e.g. "MP3 128kbps".
func (s *Session) FormatLabel() string {
	return s.label
}

// Close tears down the decode chain and the network connection.
func (s *Session) Close() error {
	s.src.Close()
	return s.resp.Body.Close()
}
