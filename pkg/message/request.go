package message

import (
	"maps"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// RequestInfo is the raw per-connection record produced by a listener.
// It is consumed once by NewRequest and not retained.
type RequestInfo struct {
	ID          string
	Method      string
	URI         string
	HTTPVersion string
	QueryString string
	Body        []byte
	RemoteUser  string
	RemoteIP    string
	RemotePort  int
	StatusCode  int
	Headers     map[string]string
	Host        string
	LocalPort   int
}

// Request is an immutable snapshot of an inbound request.
type Request struct {
	id          string
	method      Method
	methodName  string
	uri         string
	httpVersion string
	queryString string
	body        []byte
	remoteUser  string
	remoteIP    string
	remotePort  int
	statusCode  int
	headers     map[string]string
	hostDomain  string
	hostPort    int
}

// NewRequest builds a Request from a listener record. The record's body and
// header map are copied, so later mutation of info does not leak through.
func NewRequest(info *RequestInfo) *Request {
	if info == nil {
		info = &RequestInfo{}
	}

	r := &Request{
		id:          info.ID,
		method:      ParseMethod(info.Method),
		methodName:  info.Method,
		uri:         info.URI,
		httpVersion: info.HTTPVersion,
		queryString: info.QueryString,
		body:        append([]byte(nil), info.Body...),
		remoteUser:  info.RemoteUser,
		remoteIP:    info.RemoteIP,
		remotePort:  info.RemotePort,
		statusCode:  info.StatusCode,
		headers:     maps.Clone(info.Headers),
	}
	if r.headers == nil {
		r.headers = map[string]string{}
	}

	host := info.Host
	if host == "" {
		host = r.Header("Host")
	}
	r.hostDomain, r.hostPort = splitHost(host, info.LocalPort)

	return r
}

// splitHost derives the domain and port from a Host header value. An invalid
// header yields an empty domain; a missing port falls back to localPort.
func splitHost(host string, localPort int) (string, int) {
	if host == "" || !httpguts.ValidHostHeader(host) {
		return "", localPort
	}

	domain, portStr, err := net.SplitHostPort(host)
	if err != nil {
		// no port present
		return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), localPort
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return domain, localPort
	}
	return domain, port
}

func (r *Request) ID() string          { return r.id }
func (r *Request) Method() Method      { return r.method }
func (r *Request) MethodName() string  { return r.methodName }
func (r *Request) URI() string         { return r.uri }
func (r *Request) HTTPVersion() string { return r.httpVersion }
func (r *Request) QueryString() string { return r.queryString }
func (r *Request) RemoteUser() string  { return r.remoteUser }
func (r *Request) RemoteIP() string    { return r.remoteIP }
func (r *Request) RemotePort() int     { return r.remotePort }

// StatusCode is the status placeholder delivered by the listener. It is zero
// until a response has been chosen.
func (r *Request) StatusCode() int { return r.statusCode }

// HostDomain is the host name from the Host header, without port.
func (r *Request) HostDomain() string { return r.hostDomain }

// HostPort is the port from the Host header, or the local listening port
// when the header carries none.
func (r *Request) HostPort() int { return r.hostPort }

// Body returns a copy of the request body.
func (r *Request) Body() []byte {
	return append([]byte(nil), r.body...)
}

// Headers returns a copy of the header map, keys as delivered.
func (r *Request) Headers() map[string]string {
	return maps.Clone(r.headers)
}

// Header looks up a header value ignoring key case.
func (r *Request) Header(name string) string {
	if v, ok := r.headers[name]; ok {
		return v
	}
	for k, v := range r.headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
