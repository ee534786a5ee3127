// Package xmlrpc encodes and decodes the XML-RPC wire format used by the
// publisher's XML-RPC requests: methodCall bodies on the way in, and
// methodResponse bodies (values or faults) on the way out.
//
// Decoded values map to Go types as follows: int/i4/i8 to int64, boolean to
// bool, double to float64, string (or untyped text) to string,
// dateTime.iso8601 to time.Time, base64 to []byte, struct to map[string]any,
// array to []any and nil to nil.
package xmlrpc

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ContentType is the media type of XML-RPC bodies.
const ContentType = "text/xml; charset=utf-8"

// dateTimeLayout is the ISO 8601 basic layout XML-RPC uses.
const dateTimeLayout = "20060102T15:04:05"

// ErrMalformed is returned for bodies that are not valid XML-RPC.
var ErrMalformed = errors.New("xmlrpc: malformed message")

// MethodCall is a decoded methodCall.
type MethodCall struct {
	Method string
	Params []any
}

// Fault is an XML-RPC fault.
type Fault struct {
	Code   int
	String string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.String)
}

type xValue struct {
	Int      *string   `xml:"int"`
	I4       *string   `xml:"i4"`
	I8       *string   `xml:"i8"`
	Boolean  *string   `xml:"boolean"`
	String   *string   `xml:"string"`
	Double   *string   `xml:"double"`
	DateTime *string   `xml:"dateTime.iso8601"`
	Base64   *string   `xml:"base64"`
	Struct   *xStruct  `xml:"struct"`
	Array    *xArray   `xml:"array"`
	Nil      *struct{} `xml:"nil"`
	Text     string    `xml:",chardata"`
}

type xStruct struct {
	Members []xMember `xml:"member"`
}

type xMember struct {
	Name  string `xml:"name"`
	Value xValue `xml:"value"`
}

type xArray struct {
	Values []xValue `xml:"data>value"`
}

type xMethodCall struct {
	XMLName    xml.Name `xml:"methodCall"`
	MethodName string   `xml:"methodName"`
	Params     []xValue `xml:"params>param>value"`
}

type xMethodResponse struct {
	XMLName xml.Name `xml:"methodResponse"`
	Params  []xValue `xml:"params>param>value"`
	Fault   *xValue  `xml:"fault>value"`
}

// DecodeCall reads a methodCall document.
func DecodeCall(r io.Reader) (*MethodCall, error) {
	var mc xMethodCall
	if err := xml.NewDecoder(r).Decode(&mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	method := strings.TrimSpace(mc.MethodName)
	if method == "" {
		return nil, fmt.Errorf("%w: missing methodName", ErrMalformed)
	}

	params := make([]any, 0, len(mc.Params))
	for i := range mc.Params {
		v, err := mc.Params[i].decode()
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		params = append(params, v)
	}
	return &MethodCall{Method: method, Params: params}, nil
}

// DecodeResponse reads a methodResponse document. A fault is returned as a
// *Fault error.
func DecodeResponse(r io.Reader) (any, error) {
	var mr xMethodResponse
	if err := xml.NewDecoder(r).Decode(&mr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if mr.Fault != nil {
		v, err := mr.Fault.decode()
		if err != nil {
			return nil, err
		}
		m, _ := v.(map[string]any)
		code, _ := m["faultCode"].(int64)
		msg, _ := m["faultString"].(string)
		return nil, &Fault{Code: int(code), String: msg}
	}
	if len(mr.Params) != 1 {
		return nil, fmt.Errorf("%w: expected one param, got %d", ErrMalformed, len(mr.Params))
	}
	return mr.Params[0].decode()
}

func (v *xValue) decode() (any, error) {
	switch {
	case v.Int != nil:
		return parseInt(*v.Int)
	case v.I4 != nil:
		return parseInt(*v.I4)
	case v.I8 != nil:
		return parseInt(*v.I8)
	case v.Boolean != nil:
		switch strings.TrimSpace(*v.Boolean) {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, fmt.Errorf("%w: bad boolean %q", ErrMalformed, *v.Boolean)
	case v.String != nil:
		return *v.String, nil
	case v.Double != nil:
		f, err := strconv.ParseFloat(strings.TrimSpace(*v.Double), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad double %q", ErrMalformed, *v.Double)
		}
		return f, nil
	case v.DateTime != nil:
		t, err := time.Parse(dateTimeLayout, strings.TrimSpace(*v.DateTime))
		if err != nil {
			return nil, fmt.Errorf("%w: bad dateTime %q", ErrMalformed, *v.DateTime)
		}
		return t, nil
	case v.Base64 != nil:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*v.Base64))
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64", ErrMalformed)
		}
		return b, nil
	case v.Struct != nil:
		m := make(map[string]any, len(v.Struct.Members))
		for i := range v.Struct.Members {
			mv, err := v.Struct.Members[i].Value.decode()
			if err != nil {
				return nil, err
			}
			m[v.Struct.Members[i].Name] = mv
		}
		return m, nil
	case v.Array != nil:
		arr := make([]any, 0, len(v.Array.Values))
		for i := range v.Array.Values {
			av, err := v.Array.Values[i].decode()
			if err != nil {
				return nil, err
			}
			arr = append(arr, av)
		}
		return arr, nil
	case v.Nil != nil:
		return nil, nil
	default:
		return v.Text, nil
	}
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad int %q", ErrMalformed, s)
	}
	return n, nil
}
