// Package archives classifies downloaded files, resolves which native archive
// tools are available on the host, and runs extractions through them.
package archives
