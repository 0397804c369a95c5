package knowledge

import "fmt"

// NotFoundError reports that the knowledge base file does not exist or cannot be opened.
// errors.Is(err, fs.ErrNotExist) holds when the file is missing.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("knowledge base %s not found: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// MalformedDataError reports a knowledge base that cannot be used. Record is the zero-based
// position of the offending record, or -1 when the problem concerns the whole document.
type MalformedDataError struct {
	Path   string
	Record int
	Reason string
	Err    error
}

func (e *MalformedDataError) Error() string {
	msg := fmt.Sprintf("malformed knowledge base %s", e.Path)
	if e.Record >= 0 {
		msg += fmt.Sprintf(" at record %d", e.Record)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedDataError) Unwrap() error { return e.Err }
