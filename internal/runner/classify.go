package runner

import (
	"net/http"
	"strconv"
)

// Classification is the outcome token of a call that received a status.
type Classification string

const (
	ClassOK                  Classification = "OK"
	ClassInternalServerError Classification = "InternalServerError"
	ClassRequestTimeout      Classification = "RequestTimeout"
	ClassNoContent           Classification = "NoContent"
	ClassNotFound            Classification = "NotFound"
	ClassMethodNotAllowed    Classification = "MethodNotAllowed"
)

// GlyphTransportError is echoed for calls that never got a status.
const GlyphTransportError = "💥"

var knownClasses = map[int]Classification{
	http.StatusOK:                  ClassOK,
	http.StatusInternalServerError: ClassInternalServerError,
	http.StatusRequestTimeout:      ClassRequestTimeout,
	http.StatusNoContent:           ClassNoContent,
	http.StatusNotFound:            ClassNotFound,
	http.StatusMethodNotAllowed:    ClassMethodNotAllowed,
}

var glyphs = map[Classification]string{
	ClassOK:                  "😎",
	ClassInternalServerError: "😡",
	ClassRequestTimeout:      "⏱️",
	ClassNoContent:           "😭",
	ClassNotFound:            "❓",
	ClassMethodNotAllowed:    "🚫",
}

// LegendOrder is the order the result key is printed in.
var LegendOrder = []Classification{
	ClassOK,
	ClassInternalServerError,
	ClassRequestTimeout,
	ClassNoContent,
	ClassNotFound,
	ClassMethodNotAllowed,
}

// Classify maps a status code to its classification. Codes outside the
// known set classify as their decimal text, e.g. "429".
func Classify(status int) Classification {
	if c, ok := knownClasses[status]; ok {
		return c
	}
	return Classification(strconv.Itoa(status))
}

// Known reports whether c is one of the enumerated classifications.
func (c Classification) Known() bool {
	_, ok := glyphs[c]
	return ok
}

// Glyph returns the console token for c. Unknown classes print themselves.
func (c Classification) Glyph() string {
	if g, ok := glyphs[c]; ok {
		return g
	}
	return string(c)
}

func (c Classification) String() string {
	return string(c)
}
