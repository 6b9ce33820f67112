package message

import (
	"fmt"
	"net/http"
	"strings"
)

// Common content types.
const (
	ContentTypeTextHTML        = "text/html"
	ContentTypeTextCSS         = "text/css"
	ContentTypeTextPlain       = "text/plain"
	ContentTypeImageJPEG       = "image/jpeg"
	ContentTypeImageGIF        = "image/gif"
	ContentTypeImagePNG        = "image/png"
	ContentTypeApplicationJSON = "application/json"
	ContentTypeOctetStream     = "application/octet-stream"
)

// Response is an immutable HTTP response value.
type Response struct {
	statusCode  int
	contentType string
	body        []byte
	// headLength is the advertised Content-Length of a HEAD response.
	headLength int
	head       bool
}

// New creates a Response from raw bytes. The status code is taken as-is,
// including non-standard values.
func New(code int, contentType string, body []byte) *Response {
	return &Response{
		statusCode:  code,
		contentType: contentType,
		body:        append([]byte(nil), body...),
	}
}

// NewString creates a Response whose body is the UTF-8 encoding of text.
func NewString(code int, contentType, text string) *Response {
	return &Response{
		statusCode:  code,
		contentType: contentType,
		body:        []byte(text),
	}
}

// NewHead creates a bodiless Response that advertises length bytes, as a
// reply to a HEAD request.
func NewHead(code int, contentType string, length int) *Response {
	return &Response{
		statusCode:  code,
		contentType: contentType,
		headLength:  length,
		head:        true,
	}
}

// ContentLength returns the value written to the Content-Length header.
func (r *Response) ContentLength() int {
	if r.head {
		return r.headLength
	}
	return len(r.body)
}

func (r *Response) StatusCode() int     { return r.statusCode }
func (r *Response) ContentType() string { return r.contentType }

// Body returns a copy of the response body.
func (r *Response) Body() []byte {
	return append([]byte(nil), r.body...)
}

// Reason returns the reason phrase for the status code.
func (r *Response) Reason() string {
	return ReasonPhrase(r.statusCode)
}

// Header returns the serialized header block, terminated by an empty line.
func (r *Response) Header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.statusCode, r.Reason())
	fmt.Fprintf(&b, "Content-Type: %s\r\n", r.contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", r.ContentLength())
	b.WriteString("Connection: close\r\n\r\n")
	return b.String()
}

// Output returns the header block followed by the body.
func (r *Response) Output() []byte {
	header := r.Header()
	out := make([]byte, 0, len(header)+len(r.body))
	out = append(out, header...)
	return append(out, r.body...)
}

// ReasonPhrase returns the standard reason phrase for code, or "Unknown".
func ReasonPhrase(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
