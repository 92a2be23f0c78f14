package adapter

import "github.com/amishk599/jobagg/internal/model"

// Board is one company career board on a hosted applicant tracking system.
type Board struct {
	Token   string // board token or company slug in the ATS URL
	Company string // display name; the ATS APIs do not return it
}

// boardPage resolves the 1-indexed page to a board. ok is false past the
// last board, in which case the returned page is the terminal empty page.
func boardPage(boards []Board, page int) (Board, model.Page, bool) {
	if page < 1 || page > len(boards) {
		return Board{}, model.Page{Done: true}, false
	}
	return boards[page-1], model.Page{}, true
}
