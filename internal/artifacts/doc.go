// Package artifacts persists the files that make up one analysis: the page
// screenshot, the normalized audio, the transcript document, and the metadata
// document.
//
// Every file is addressed by analysis id inside one of three namespaces
// (screenshots, audio, results), so concurrent analyses never share a path.
// Lookups and deletes treat missing files as normal: Get reports exists=false
// and Delete reports zero removals instead of failing. A record exists exactly
// when its transcript document is present.
package artifacts
