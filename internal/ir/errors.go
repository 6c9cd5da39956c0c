package ir

import "fmt"

// IrError reports a broken internal invariant: an earlier stage or a pass left
// the graph in an impossible state. It is fatal — callers abort the compilation
// rather than retrying. Analysis imprecision is never an IrError; imprecise
// results are expressed as explicit Incomplete/Unknown sentinels instead.
type IrError struct {
	Pass   string // pass or analysis that detected the violation, if known
	Detail string
}

func (e *IrError) Error() string {
	if e.Pass != "" {
		return fmt.Sprintf("ir: %s: %s", e.Pass, e.Detail)
	}
	return "ir: " + e.Detail
}

// Errorf builds an IrError attributed to pass.
func Errorf(pass, format string, args ...interface{}) *IrError {
	return &IrError{Pass: pass, Detail: fmt.Sprintf(format, args...)}
}
