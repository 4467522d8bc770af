// Package scenario reads scenario documents (see api/v1alpha1) and builds
// the world they describe: the technology templates are registered in the
// world's registry, and every region, sector, subsector and technology is
// created and filled period by period.
package scenario
