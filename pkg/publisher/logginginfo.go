package publisher

// LoggingInfo provides the text identifying a principal in access logs.
type LoggingInfo interface {
	LogMessage() string
}

// PrincipalLoggingInfo adapts a principal identifier to LoggingInfo.
// Characters outside printable ASCII are replaced so the value stays on
// one log line.
type PrincipalLoggingInfo string

// LogMessage implements LoggingInfo.
func (p PrincipalLoggingInfo) LogMessage() string {
	b := []byte(p)
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			b[i] = '?'
		}
	}
	return string(b)
}
