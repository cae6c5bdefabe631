package models

// Frame is an in-memory tabular result: named columns plus row records.
// It stands in for whatever result shape the data-source handle returns.
type Frame struct {
	// Columns lists column names in result order.
	Columns []string `json:"columns"`
	// Records holds one map per row, keyed by column name.
	Records []map[string]any `json:"records"`
}

// NumRows returns the number of rows in the frame.
func (f *Frame) NumRows() int {
	if f == nil {
		return 0
	}
	return len(f.Records)
}

// NumCols returns the number of columns in the frame.
func (f *Frame) NumCols() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Head returns up to n leading records. The returned slice aliases the
// frame's records; callers must not mutate it.
func (f *Frame) Head(n int) []map[string]any {
	if f == nil || n <= 0 {
		return nil
	}
	if n > len(f.Records) {
		n = len(f.Records)
	}
	return f.Records[:n]
}
