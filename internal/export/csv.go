// Package export reads and writes the listing CSV format used by the
// back-office. Files are UTF-8 with a leading byte-order mark so common
// spreadsheet tools open Chinese-locale content correctly.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"brickdesk/server/internal/models"
	"brickdesk/server/internal/normalize"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"标题", "小区", "区域", "城市", "地址", "状态",
	"挂牌价(万)", "成交价(万)", "单价(元/平)", "建筑面积(平)",
	"户型(室)", "楼层", "建成年份",
}

// WriteProperties writes listings as CSV. Derived columns (canonical status,
// display price, unit price) come from the normalizer, never the raw fields.
func WriteProperties(w io.Writer, properties []models.Property) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := append(append([]string{}, csvHeader...), "标准状态", "展示价(万)")
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range properties {
		p := &properties[i]
		record := []string{
			p.Title,
			p.Community,
			p.District,
			p.City,
			p.Address,
			p.Status,
			formatFloat(p.ListedPriceWan),
			formatFloat(p.SoldPriceWan),
			formatFloat(normalize.UnitPriceYuanPerSqm(p)),
			formatFloat(p.BuildArea),
			formatInt(p.Rooms),
			formatInt(p.Floor),
			formatInt(p.YearBuilt),
			string(normalize.NormalizeStatus(p.Status)),
			formatFloat(normalize.DisplayPriceWan(p)),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTemplate writes the import template: the header row plus one sample row.
func WriteTemplate(w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	sample := []string{
		"两室朝南 近地铁", "翠湖花园", "滨江", "杭州", "翠湖路88号",
		"在售", "500", "", "", "100", "2", "12", "2015",
	}
	if err := cw.Write(sample); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// ParseProperties reads an uploaded CSV into listings. The status column is
// kept raw; normalization happens at read time everywhere else. Rows with the
// wrong column count surface as errors with a row number staff can act on.
func ParseProperties(r io.Reader) ([]*models.Property, error) {
	cr := csv.NewReader(newBOMReader(r))
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV contains no data rows")
	}

	properties := make([]*models.Property, 0, len(records)-1)
	for i, record := range records[1:] {
		p := &models.Property{
			Title:     record[0],
			Community: record[1],
			District:  record[2],
			City:      record[3],
			Address:   record[4],
			Status:    record[5],
		}
		if p.Title == "" {
			return nil, fmt.Errorf("row %d: title is required", i+2)
		}
		p.ListedPriceWan, err = parseFloat(record[6], i+2, "挂牌价")
		if err != nil {
			return nil, err
		}
		p.SoldPriceWan, err = parseFloat(record[7], i+2, "成交价")
		if err != nil {
			return nil, err
		}
		p.UnitPriceYuan, err = parseFloat(record[8], i+2, "单价")
		if err != nil {
			return nil, err
		}
		p.BuildArea, err = parseFloat(record[9], i+2, "建筑面积")
		if err != nil {
			return nil, err
		}
		p.Rooms, err = parseInt(record[10], i+2, "户型")
		if err != nil {
			return nil, err
		}
		p.Floor, err = parseInt(record[11], i+2, "楼层")
		if err != nil {
			return nil, err
		}
		p.YearBuilt, err = parseInt(record[12], i+2, "建成年份")
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}

	return properties, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseFloat(s string, row int, column string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("row %d: invalid %s value %q", row, column, s)
	}
	return &v, nil
}

func parseInt(s string, row int, column string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("row %d: invalid %s value %q", row, column, s)
	}
	return &v, nil
}
