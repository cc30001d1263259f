// SPDX-License-Identifier: MIT

/*
Package decode turns a stream URL into a pull-based PCM session.

A session owns the network connection, the ICY metadata demuxer, the MP3
decoder and, when the source rate differs from the output rate, a
resampler. The player pipeline pulls interleaved stereo s16le bytes from
it and queries inline metadata by key; everything else stays internal.
*/
package decode

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

const connectTimeout = 10 * time.Second

var client = &http.Client{
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		ResponseHeaderTimeout: connectTimeout,
		DisableCompression:    true,
		ExpectContinueTimeout: 1 * time.Second,
	},
	// No total timeout, the body is an endless stream. Connection setup
	// is bounded by the dial and response header timeouts instead.
	Timeout: 0,
}

// connect opens the stream URL and requests in-band ICY metadata.
func connect(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Icy-MetaData", "1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("connect %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp, nil
}

// countingReader tracks compressed bytes as they come off the wire, before
// any decoding. The player reads the counter from another goroutine to
// derive the live bitrate.
type countingReader struct {
	r io.Reader
	n atomic.Uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(uint64(n))
	return n, err
}

func (c *countingReader) count() uint64 { return c.n.Load() }
