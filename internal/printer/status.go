package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// HostStatus is the decoded part of a ~HS answer.
type HostStatus struct {
	Raw        string
	PaperOut   bool
	Paused     bool
	HeadOpen   bool
	RibbonOut  bool
	LabelsLeft string
}

func (s HostStatus) Ready() bool {
	return !s.PaperOut && !s.Paused && !s.HeadOpen && !s.RibbonOut
}

func (s HostStatus) Summary() string {
	var issues []string
	if s.PaperOut {
		issues = append(issues, "paper out")
	}
	if s.Paused {
		issues = append(issues, "paused")
	}
	if s.HeadOpen {
		issues = append(issues, "head open")
	}
	if s.RibbonOut {
		issues = append(issues, "ribbon out")
	}
	if len(issues) == 0 {
		return "ready"
	}
	return strings.Join(issues, ", ")
}

// QueryHostStatus sends ~HS to the printer and reads the three status lines
// until timeout.
func (t *Transport) QueryHostStatus(ctx context.Context, target Target, timeout time.Duration) (HostStatus, error) {
	if timeout <= 0 {
		timeout = 1200 * time.Millisecond
	}
	addr := target.Addr()

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	conn, err := t.dial(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		return HostStatus{}, &Error{Kind: FailConnect, Addr: addr, Err: err}
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte("~HS\r\n")); err != nil {
		return HostStatus{}, &Error{Kind: FailWrite, Addr: addr, Err: fmt.Errorf("~HS yuborilmadi: %w", err)}
	}

	buf := make([]byte, 1024)
	resp := make([]byte, 0, 1024)
	for strings.Count(string(resp), "\x03") < 3 {
		n, rerr := conn.Read(buf)
		resp = append(resp, buf[:n]...)
		if rerr != nil {
			var ne net.Error
			if errors.As(rerr, &ne) && ne.Timeout() && len(resp) > 0 {
				break
			}
			if len(resp) > 0 {
				break
			}
			return HostStatus{}, fmt.Errorf("status javobi olinmadi: %w", rerr)
		}
	}

	st := ParseHostStatus(normalizeStatusResponse(resp))
	t.log.Printf("host status: addr=%s summary=%s", addr, st.Summary())
	return st, nil
}

// ParseHostStatus decodes the ~HS lines. Line one carries the paper-out
// and pause flags, line two head-up, ribbon-out and labels left in batch.
func ParseHostStatus(text string) HostStatus {
	st := HostStatus{Raw: text}
	lines := strings.Split(text, "\n")
	field := func(line, idx int) string {
		if line >= len(lines) {
			return ""
		}
		parts := strings.Split(lines[line], ",")
		if idx >= len(parts) {
			return ""
		}
		return strings.TrimSpace(parts[idx])
	}
	st.PaperOut = field(0, 1) == "1"
	st.Paused = field(0, 2) == "1"
	st.HeadOpen = field(1, 2) == "1"
	st.RibbonOut = field(1, 3) == "1"
	st.LabelsLeft = field(1, 8)
	return st
}

func normalizeStatusResponse(raw []byte) string {
	text := string(raw)
	repl := strings.NewReplacer("\x00", "", "\x02", "", "\x03", "\n", "\r", "\n")
	text = repl.Replace(text)
	rows := strings.Split(text, "\n")
	clean := make([]string, 0, len(rows))
	for _, row := range rows {
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}
		clean = append(clean, row)
	}
	return strings.Join(clean, "\n")
}
