// Package v1alpha1 contains the scenario schema read by the model: model
// time, technology templates and the regions with their sectors and
// subsectors. Year-indexed inputs are Series keyed by calendar year.
//
// +groupName=market-equilibrium
package v1alpha1
