// Package assistant implements [atrium.Streamer] for the platform's AI
// answer endpoint.
//
// The endpoint takes a question over HTTP POST and answers with a
// line-oriented event stream: each frame is an "event:" line naming its
// kind, one or more "data:" lines, and a terminating blank line. The
// parser assembles frames incrementally so the transport can feed it bytes
// at whatever chunk boundaries the network delivers.
package assistant

const (
	askPath = "/assistant/ask"

	// readBufSize is the chunk size used when draining the response body.
	readBufSize = 4096
)

// askRequest is the JSON body sent to the ask endpoint.
type askRequest struct {
	Question string `json:"question"`
	FileURL  string `json:"file_url"`
	ChatID   string `json:"chat_id,omitempty"`
}
