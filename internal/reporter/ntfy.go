package reporter

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NtfyReporter pushes completion and error notifications to an ntfy.sh
// topic. Only terminal events are forwarded; progress noise never leaves the
// machine. Sends happen on a goroutine so a slow network cannot stall the
// pipeline, and failures are silently dropped: notifications are best-effort.
type NtfyReporter struct {
	NullReporter
	url    string
	client *http.Client
}

// NewNtfyReporter creates a notification sink for the given topic.
func NewNtfyReporter(topic string) *NtfyReporter {
	return &NtfyReporter{
		url:    "https://ntfy.sh/" + topic,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *NtfyReporter) send(title, message, priority string) {
	go func() {
		req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
		if err != nil {
			return
		}
		req.Header.Set("Title", title)
		if priority != "" {
			req.Header.Set("Priority", priority)
		}
		resp, err := n.client.Do(req)
		if err != nil {
			return
		}
		_ = resp.Body.Close()
	}()
}

func (n *NtfyReporter) EncodingComplete(o EncodingOutcome) {
	n.send("Encoding complete", o.OutputFile+" finished in "+o.TotalTime.Round(time.Second).String(), "")
}

func (n *NtfyReporter) Error(e Error) {
	n.send(e.Title, e.Message, "high")
}

func (n *NtfyReporter) OperationComplete(message string) {
	n.send("Drapto", message, "")
}

func (n *NtfyReporter) BatchComplete(s BatchSummary) {
	msg := fmt.Sprintf("Batch complete: %d/%d files encoded", s.SuccessfulCount, s.TotalFiles)
	n.send("Drapto", msg, "")
}
