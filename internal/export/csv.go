package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
)

// csvColumns is the fixed row width: name and slug for each level.
const csvColumns = 2 * taxonomy.MaxDepth

// WriteCSV writes tree as CSV rows, parents before children.
func WriteCSV(w io.Writer, tree *store.Tree) error {
	cw := csv.NewWriter(w)

	row := make([]string, csvColumns)
	var err error
	tree.Walk(func(n *store.Node, depth int) {
		if err != nil || depth > taxonomy.MaxDepth {
			return
		}
		i := 2 * (depth - 1)
		row[i], row[i+1] = n.Name, n.Slug
		for j := i + 2; j < csvColumns; j++ {
			row[j] = ""
		}
		if werr := cw.Write(row); werr != nil {
			err = fmt.Errorf("write csv row %q: %w", n.Name, werr)
		}
	})
	if err != nil {
		return err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
