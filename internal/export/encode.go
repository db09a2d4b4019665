package export

import (
	"encoding/csv"
	"io"

	"github.com/fortuna/gridiron/internal/table"
)

// Encode writes t as CSV: a header row of column names, then one record
// per row. There is no index column.
func Encode(w io.Writer, t table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return err
	}
	return cw.Error()
}
