package crash

import (
	"fmt"
	"strconv"
)

// IPCKind discriminates the marshalled IPC argument types crossing the
// server boundary.
type IPCKind int

// IPC argument kinds.
const (
	IPCNull IPCKind = iota
	IPCInt
	IPCUint
	IPCFloat
	IPCString
	IPCBinary
)

// IPCValue is one marshalled IPC call argument, specified only at this
// boundary; the crash subsystem renders it into report annotations and
// never interprets it.
type IPCValue struct {
	Kind   IPCKind
	Int    int64
	Uint   uint64
	Float  float64
	Str    string
	Binary []byte
}

// IPCValuesToAnnotations renders an ordered IPC argument list into
// "argN" annotation entries, preserving positions. Binary payloads are
// recorded as present but not dumped.
func IPCValuesToAnnotations(values []IPCValue) map[string]string {
	out := make(map[string]string, len(values))
	for i, v := range values {
		key := "arg" + strconv.Itoa(i)
		switch v.Kind {
		case IPCNull:
			out[key] = "null"
		case IPCInt:
			out[key] = strconv.FormatInt(v.Int, 10)
		case IPCUint:
			out[key] = strconv.FormatUint(v.Uint, 10)
		case IPCFloat:
			out[key] = strconv.FormatFloat(v.Float, 'f', -1, 64)
		case IPCString:
			out[key] = v.Str
		case IPCBinary:
			out[key] = ""
		default:
			out[key] = fmt.Sprintf("unsupported kind %d", v.Kind)
		}
	}
	return out
}
