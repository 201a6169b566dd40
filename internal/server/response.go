// File: internal/server/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP response formatting for the two outcomes the core loop produces:
// a JSON echo of a successfully parsed request, and a bare 400 for a
// parse failure (spec.md §6).
package server

import (
	"encoding/json"
	"fmt"

	"github.com/candtechsoftware/zever/internal/httpparse"
)

type echoHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type echoBody struct {
	Method     string       `json:"method"`
	URI        string       `json:"uri"`
	Version    string       `json:"version"`
	Headers    []echoHeader `json:"headers"`
	RawRequest string       `json:"raw_request"`
}

// formatEcho builds the 200 OK JSON echo response for a fully parsed
// request. raw is the exact bytes that made up the request head (and any
// body prefix already buffered), per spec.md §4.4.
func formatEcho(req *httpparse.Request, raw []byte) []byte {
	body := echoBody{
		Method:     string(req.Method),
		URI:        string(req.URI),
		Version:    req.Version.String(),
		Headers:    make([]echoHeader, 0, req.NumHdr),
		RawRequest: string(raw),
	}
	for i := 0; i < req.NumHdr; i++ {
		body.Headers = append(body.Headers, echoHeader{
			Name:  string(req.Headers[i].Name),
			Value: string(req.Headers[i].Value),
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		// Marshaling a struct of plain strings cannot fail; if it somehow
		// does, fall back to a minimal valid JSON object rather than
		// sending a malformed body.
		payload = []byte(`{}`)
	}
	return []byte(fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		len(payload), payload,
	))
}

// formatBadRequest builds the fixed 400 response for a parse error
// (spec.md §6). The connection is always closed after sending it.
func formatBadRequest() []byte {
	return []byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
}
