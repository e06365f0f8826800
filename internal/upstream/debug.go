package upstream

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
)

// dumpOut receives debug dumps.
var dumpOut io.Writer = os.Stderr

func (c *Client) dumpRequest(req *http.Request, body []byte) {
	if c == nil || !c.Debug {
		return
	}
	head, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		slog.Error("upstream.request.dump.failed", "error", err)
		return
	}
	c.writeDumpBlock("UPSTREAM REQUEST", append(head, body...))
}

func (c *Client) dumpResponse(resp *Response) {
	if c == nil || !c.Debug || resp == nil {
		return
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP %d %s\r\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	resp.Headers.Write(&buf) //nolint:errcheck
	buf.WriteString("\r\n")
	buf.Write(resp.Body)
	c.writeDumpBlock(fmt.Sprintf("UPSTREAM RESPONSE status=%d", resp.StatusCode), buf.Bytes())
}

func (c *Client) writeDumpBlock(title string, data []byte) {
	c.dumpMu.Lock()
	defer c.dumpMu.Unlock()

	title = strings.TrimSpace(title)
	var buf bytes.Buffer
	buf.WriteString("===== " + title + " BEGIN =====\n")
	buf.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("===== " + title + " END =====\n")
	if _, err := dumpOut.Write(buf.Bytes()); err != nil {
		slog.Error("upstream.dump.write.failed", "title", title, "error", err)
	}
}
