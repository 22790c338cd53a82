// Package correlation joins batch windows from the registry with the pH and
// TCC history recorded on each batch's reactor line during the window.
//
// Windows are queried concurrently up to a configurable bound. A failing
// signal query is recorded on its window and never aborts the others; the
// summary counts failures alongside the readings that did arrive.
package correlation
