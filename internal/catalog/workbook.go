package catalog

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/julianstephens/estimator/internal/models"
)

// Sheet names of the seed workbook.
const (
	SheetMaterials     = "Materials"
	SheetAssemblies    = "Assemblies"
	SheetAssemblyItems = "AssemblyItems"
	SheetDje           = "DJE"
)

var sheetHeaders = map[string][]string{
	SheetMaterials:     {"type", "id", "item_description", "price", "labor_unit", "unit_quantity_size", "unit"},
	SheetAssemblies:    {"id", "name"},
	SheetAssemblyItems: {"assembly_id", "material_id", "quantity"},
	SheetDje:           {"category", "subcategory", "id", "description", "cost"},
}

var sheetOrder = []string{SheetMaterials, SheetAssemblies, SheetAssemblyItems, SheetDje}

type materialRow struct {
	materialType string
	option       models.MaterialOption
}

type assemblyItem struct {
	materialID string
	quantity   float64
}

type djeRow struct {
	category, subcategory string
	option                models.DjeOption
}

// Workbook is a catalog loaded from an xlsx seed. Prices and labor units in
// the Materials sheet are per pack; they are normalised to per-each on load.
type Workbook struct {
	materials  []materialRow
	assemblies []models.Assembly
	items      map[string][]assemblyItem
	dje        []djeRow
}

// OpenWorkbook loads the seed at path.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f)
}

// ReadWorkbook loads a seed from r.
func ReadWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (*Workbook, error) {
	wb := &Workbook{items: make(map[string][]assemblyItem)}

	rows, err := sheetRecords(f, SheetMaterials)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		pack := int(r.number("unit_quantity_size"))
		opt := models.MaterialOption{
			ID:             r.text("id"),
			Description:    r.text("item_description"),
			UnitPrice:      models.PerEach(r.number("price"), pack),
			LaborUnitHours: models.PerEach(r.number("labor_unit"), pack),
			Unit:           r.text("unit"),
			PackSize:       pack,
		}
		if opt.ID == "" || r.text("type") == "" {
			continue
		}
		wb.materials = append(wb.materials, materialRow{materialType: r.text("type"), option: opt})
	}

	if rows, err = sheetRecords(f, SheetAssemblies); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if id := r.text("id"); id != "" {
			wb.assemblies = append(wb.assemblies, models.Assembly{ID: id, Name: r.text("name")})
		}
	}

	if rows, err = sheetRecords(f, SheetAssemblyItems); err != nil {
		return nil, err
	}
	for _, r := range rows {
		id := r.text("assembly_id")
		if id == "" {
			continue
		}
		wb.items[id] = append(wb.items[id], assemblyItem{materialID: r.text("material_id"), quantity: r.number("quantity")})
	}

	if rows, err = sheetRecords(f, SheetDje); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.text("category") == "" || r.text("id") == "" {
			continue
		}
		wb.dje = append(wb.dje, djeRow{
			category:    r.text("category"),
			subcategory: r.text("subcategory"),
			option: models.DjeOption{
				ID:          r.text("id"),
				Description: r.text("description"),
				UnitCost:    r.number("cost"),
			},
		})
	}

	return wb, nil
}

type record map[string]string

func (r record) text(col string) string {
	return strings.TrimSpace(r[col])
}

// number parses a numeric cell; blanks and junk read as zero.
func (r record) number(col string) float64 {
	s := strings.ReplaceAll(strings.TrimPrefix(r.text(col), "$"), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// sheetRecords maps each data row to its header names. A missing sheet reads
// as empty.
func sheetRecords(f *excelize.File, sheet string) ([]record, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	out := make([]record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(record, len(header))
		for i, cell := range row {
			if i < len(header) && header[i] != "" {
				rec[header[i]] = cell
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stats counts the rows loaded per sheet.
func (w *Workbook) Stats() map[string]int {
	items := 0
	for _, list := range w.items {
		items += len(list)
	}
	return map[string]int{
		SheetMaterials:     len(w.materials),
		SheetAssemblies:    len(w.assemblies),
		SheetAssemblyItems: items,
		SheetDje:           len(w.dje),
	}
}

func (w *Workbook) MaterialTypes(ctx context.Context) ([]string, error) {
	types := make([]string, 0, len(w.materials))
	for _, m := range w.materials {
		types = append(types, m.materialType)
	}
	return WithAssemblies(types), nil
}

func (w *Workbook) MaterialDescriptions(ctx context.Context, materialType string) ([]models.MaterialOption, error) {
	var out []models.MaterialOption
	for _, m := range w.materials {
		if strings.EqualFold(m.materialType, materialType) {
			out = append(out, m.option)
		}
	}
	return out, nil
}

func (w *Workbook) Assemblies(ctx context.Context) ([]models.Assembly, error) {
	return append([]models.Assembly(nil), w.assemblies...), nil
}

func (w *Workbook) AssemblyRollup(ctx context.Context, assemblyID string) (models.AssemblyRollup, error) {
	found := false
	for _, a := range w.assemblies {
		if a.ID == assemblyID {
			found = true
			break
		}
	}
	if !found {
		return models.AssemblyRollup{}, fmt.Errorf("assembly %q not found", assemblyID)
	}

	byID := make(map[string]models.MaterialOption, len(w.materials))
	for _, m := range w.materials {
		byID[m.option.ID] = m.option
	}

	rollup := models.AssemblyRollup{AssemblyID: assemblyID}
	for _, item := range w.items[assemblyID] {
		m, ok := byID[item.materialID]
		if !ok {
			continue
		}
		rollup.MaterialCostTotal += item.quantity * m.UnitPrice
		rollup.LaborHoursTotal += item.quantity * m.LaborUnitHours
		rollup.ComponentCount++
	}
	return rollup, nil
}

func (w *Workbook) DjeCategories(ctx context.Context) ([]string, error) {
	return distinct(w.dje, func(r djeRow) (string, bool) { return r.category, true }), nil
}

func (w *Workbook) DjeSubcategories(ctx context.Context, category string) ([]string, error) {
	return distinct(w.dje, func(r djeRow) (string, bool) {
		return r.subcategory, r.category == category && r.subcategory != ""
	}), nil
}

func (w *Workbook) DjeDescriptions(ctx context.Context, category, subcategory string) ([]models.DjeOption, error) {
	var out []models.DjeOption
	for _, r := range w.dje {
		if r.category == category && r.subcategory == subcategory {
			out = append(out, r.option)
		}
	}
	return out, nil
}

func distinct(rows []djeRow, pick func(djeRow) (string, bool)) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range rows {
		v, ok := pick(r)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// WriteTemplate writes an empty seed workbook with header rows to w.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, sheet := range sheetOrder {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("set sheet name: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		headers := sheetHeaders[sheet]
		row := make([]interface{}, len(headers))
		for j, h := range headers {
			row[j] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
			return fmt.Errorf("write header %s: %w", sheet, err)
		}
		last, err := excelize.CoordinatesToCellName(len(headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", sheet, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
