// Package exporter writes processed series as CSV, XLSX or JSON files.
//
// Every format shares the same columns: Data, Valor, Categoria, Região,
// Fonte and Anomalia, followed by one Title Case column per metadata key.
// CSV output starts with a UTF-8 BOM for Excel compatibility and XLSX output
// holds a single "Dados" sheet.
//
// Example usage:
//
//	var buf bytes.Buffer
//	err := exporter.Write(&buf, domain.FormatCSV, points)
//
//	files := exporter.NewFileExporter("data/exports", logger)
//	path, err := files.Export(points, domain.FormatXLSX, "")
package exporter
