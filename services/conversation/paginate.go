package conversation

import "bookline/models"

// paginate cuts one page out of rows starting at offset. When entries remain
// past the page, the last row is replaced by a "See more" control so the page
// never exceeds size rows (the channel's list limit).
func paginate(rows []models.Row, offset, size int) []models.Row {
	if offset < 0 || offset >= len(rows) {
		offset = 0
	}
	rest := rows[offset:]
	if len(rest) <= size {
		return rest
	}
	page := make([]models.Row, 0, size)
	page = append(page, rest[:size-1]...)
	page = append(page, models.Row{ID: CmdMore, Title: "See more"})
	return page
}

// nextOffset advances past the rows shown on the current page, wrapping to
// the start when the listing is exhausted.
func nextOffset(offset, size, total int) int {
	if total <= size {
		return 0
	}
	offset += size - 1
	if offset >= total {
		offset = 0
	}
	return offset
}
