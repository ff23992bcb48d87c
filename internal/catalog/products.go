// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"fmt"
	"strings"

	"github.com/pdiddy/astroquery/pkg/types"
)

// estsizeColumn is the ObsCore size estimate, in kilobytes.
const estsizeColumn = "access_estsize"

// Products lists the data products referenced by t. Rows with an empty URL
// are skipped; a repeated URL is listed once.
func Products(t *types.Table, idCol, urlCol, service string) ([]types.DataProduct, error) {
	if t.ColumnIndex(urlCol) < 0 {
		return nil, fmt.Errorf("result has no %q column", urlCol)
	}

	seen := make(map[string]bool)
	var products []types.DataProduct
	for row := range t.Rows {
		u := strings.TrimSpace(t.String(row, urlCol))
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true

		p := types.DataProduct{
			Service: service,
			URL:     u,
		}
		if idCol != "" {
			p.ID = t.String(row, idCol)
		}
		if kb, ok := t.Float(row, estsizeColumn); ok && kb > 0 {
			p.Size = int64(kb * 1024)
		}
		products = append(products, p)
	}
	return products, nil
}
