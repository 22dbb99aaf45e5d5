package materialize

import (
	csvparser "cameo/internal/parser/csv"
)

// Records is one pass over a delimited file: the header record first, then
// data records, then io.EOF.
type Records interface {
	Read() ([]string, error)
	Close() error
}

// Source is a delimited file that can be read more than once.
type Source interface {
	// Name is the logical table name, usually the file's base name.
	Name() string
	// Open starts a new pass.
	Open() (Records, error)
}

type csvSource struct{ src csvparser.Source }

// CSV adapts a parsed-file source to Source.
func CSV(src csvparser.Source) Source { return csvSource{src: src} }

func (s csvSource) Name() string { return s.src.Name() }

func (s csvSource) Open() (Records, error) {
	r, err := s.src.Open()
	if err != nil {
		return nil, err
	}
	return r, nil
}
