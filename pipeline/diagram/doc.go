// Package diagram extracts shapes and edges from draw.io style diagram markup.
//
// Parsing is purely structural: an mxfile may hold several diagram pages, each either
// inline or compressed, and every page yields its vertices (with label and attributes)
// and its directed edges. Classification of shapes into tasks is left to the pipeline
// compiler.
package diagram
