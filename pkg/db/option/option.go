package option

import (
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

// ApplyPagination limits the statement to one page plus a lookahead row and
// resumes after the cursor carried in PageToken.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return paginationOption{page: page}
}

func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	if o.page.PageToken != "" {
		if cursor, err := pagination.DecodeCursor(o.page.PageToken); err == nil {
			if createdAt, id, err := cursor.Position(); err == nil {
				stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
			}
		}
	}

	return stmt.Limit(o.page.Limit() + 1)
}
