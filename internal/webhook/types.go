// Package webhook forwards uploads and events to the analysis pipeline.
package webhook

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

const (
	KindFile   = "file"
	KindNotify = "notify"
)

const SecretHeader = "X-Webhook-Secret"

// maxResponseText caps a non-JSON response body kept in a Delivery.
const maxResponseText = 2048

// Delivery is the outcome of one outbound call. It is reported to the
// client as response metadata, never as an error.
type Delivery struct {
	Status   Status `json:"status"`
	Code     int    `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
	Response any    `json:"response,omitempty"`
}

func (d Delivery) Delivered() bool {
	return d.Status == StatusDelivered
}

// FileUpload is what ForwardFile sends as multipart form data.
type FileUpload struct {
	TgID          string
	FileName      string
	Mime          string
	Size          int64
	Data          []byte
	ExtractedText string
}
