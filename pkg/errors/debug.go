package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Path string `json:"path,omitempty"`
	Op   string `json:"op,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		d.Path = pathErr.Path
		d.Op = pathErr.Op
		return d
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		d.Path = linkErr.New
		d.Op = linkErr.Op
	}
	return d
}
