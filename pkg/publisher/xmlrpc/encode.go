package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Valuer lets a type choose its own XML-RPC representation.
type Valuer interface {
	XMLRPCValue() any
}

const header = `<?xml version="1.0"?>` + "\n"

// EncodeResponse writes a methodResponse carrying result.
func EncodeResponse(w io.Writer, result any) error {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("<methodResponse><params><param>")
	if err := encodeValue(&buf, result); err != nil {
		return err
	}
	buf.WriteString("</param></params></methodResponse>\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeFault writes a methodResponse carrying a fault.
func EncodeFault(w io.Writer, code int, message string) error {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("<methodResponse><fault>")
	err := encodeValue(&buf, map[string]any{
		"faultCode":   code,
		"faultString": message,
	})
	if err != nil {
		return err
	}
	buf.WriteString("</fault></methodResponse>\n")
	_, err = w.Write(buf.Bytes())
	return err
}

// EncodeCall writes a methodCall document.
func EncodeCall(w io.Writer, method string, params ...any) error {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("<methodCall><methodName>")
	xml.EscapeText(&buf, []byte(method))
	buf.WriteString("</methodName><params>")
	for _, p := range params {
		buf.WriteString("<param>")
		if err := encodeValue(&buf, p); err != nil {
			return err
		}
		buf.WriteString("</param>")
	}
	buf.WriteString("</params></methodCall>\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func encodeValue(buf *bytes.Buffer, v any) error {
	buf.WriteString("<value>")
	if err := encodeInner(buf, v); err != nil {
		return err
	}
	buf.WriteString("</value>")
	return nil
}

// encodeInner writes the typed element for v inside an open <value>.
func encodeInner(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("<nil/>")
		return nil
	case Valuer:
		return encodeInner(buf, x.XMLRPCValue())
	case string:
		writeElem(buf, "string", x)
		return nil
	case bool:
		if x {
			writeElem(buf, "boolean", "1")
		} else {
			writeElem(buf, "boolean", "0")
		}
		return nil
	case []byte:
		writeElem(buf, "base64", base64.StdEncoding.EncodeToString(x))
		return nil
	case time.Time:
		writeElem(buf, "dateTime.iso8601", x.Format(dateTimeLayout))
		return nil
	case fmt.Stringer:
		writeElem(buf, "string", x.String())
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeElem(buf, "int", strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		writeElem(buf, "int", strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		writeElem(buf, "double", strconv.FormatFloat(rv.Float(), 'f', -1, 64))
	case reflect.Slice, reflect.Array:
		buf.WriteString("<array><data>")
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(buf, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		buf.WriteString("</data></array>")
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("xmlrpc: unsupported map key type %s", rv.Type().Key())
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		buf.WriteString("<struct>")
		for _, k := range keys {
			buf.WriteString("<member><name>")
			xml.EscapeText(buf, []byte(k.String()))
			buf.WriteString("</name>")
			if err := encodeValue(buf, rv.MapIndex(k).Interface()); err != nil {
				return err
			}
			buf.WriteString("</member>")
		}
		buf.WriteString("</struct>")
	case reflect.Pointer:
		if rv.IsNil() {
			buf.WriteString("<nil/>")
			return nil
		}
		return encodeInner(buf, rv.Elem().Interface())
	default:
		return fmt.Errorf("xmlrpc: unsupported type %T", v)
	}
	return nil
}

func writeElem(buf *bytes.Buffer, name, text string) {
	buf.WriteString("<" + name + ">")
	xml.EscapeText(buf, []byte(text))
	buf.WriteString("</" + name + ">")
}
