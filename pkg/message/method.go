package message

// Method is the enumerated HTTP request method.
type Method int

// Request methods.
const (
	MethodUnknown Method = iota
	MethodGET
	MethodPOST
	MethodPUT
	MethodDELETE
	MethodHEAD
	MethodOPTIONS
	MethodTRACE
	MethodCONNECT
)

var methodNames = [...]string{
	MethodUnknown: "UNKNOWN",
	MethodGET:     "GET",
	MethodPOST:    "POST",
	MethodPUT:     "PUT",
	MethodDELETE:  "DELETE",
	MethodHEAD:    "HEAD",
	MethodOPTIONS: "OPTIONS",
	MethodTRACE:   "TRACE",
	MethodCONNECT: "CONNECT",
}

// ParseMethod maps a request-line method token to a Method.
// Method tokens are case-sensitive, so "get" yields MethodUnknown.
func ParseMethod(s string) Method {
	for m, name := range methodNames {
		if m != int(MethodUnknown) && name == s {
			return Method(m)
		}
	}
	return MethodUnknown
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return methodNames[MethodUnknown]
	}
	return methodNames[m]
}
