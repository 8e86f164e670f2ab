// Package governance coordinates runtime safety controls such as retries,
// bounded timeouts, and circuit breaking for the external collaborators the
// compliance pipeline depends on (completion, embedding, notification).
//
// Stages convert every governance failure into a degraded stage result, so
// these primitives protect collaborators without ever aborting a request.
package governance
