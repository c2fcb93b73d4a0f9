// Package exporter writes built portfolio graphs out of the process.
//
// GraphExporter produces nodes.csv and edges.csv through CSVWriter, which
// can prefix a UTF-8 BOM for Excel, and a graph.xlsx workbook with Nodes,
// Edges and Meta sheets. Every file is replaced atomically.
//
// SummaryPrinter renders the console summary used by cmd/summary.
//
// Example usage:
//
//	exp := exporter.NewGraphExporter("exports", logger, exporter.WithBOM(true))
//	paths, err := exp.Export(bundle, exporter.SnapshotInfo{Dataset: "v1", MinCorr: 0.25})
package exporter
