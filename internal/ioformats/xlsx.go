package ioformats

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads the "url" column of the first sheet that has one.
func readXLSX(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if urls, err := urlColumn(rows); err == nil {
			return urls, nil
		}
	}
	return nil, errors.New("xlsx must contain a 'url' header column")
}
